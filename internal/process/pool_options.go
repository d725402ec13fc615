package process

import (
	"log/slog"
	"runtime"
	"time"
)

// Pool limits.
const (
	// DefaultBinary is the converter looked up in PATH.
	DefaultBinary = "wkhtmltopdf"

	// MaxIdleLimit caps pre-warmed workers.
	MaxIdleLimit = 32

	DefaultMonitorInterval = 5 * time.Second
	MinMonitorInterval     = 100 * time.Millisecond
	MaxMonitorInterval     = 60 * time.Second
)

// StateChangeCallback is called when a worker changes state.
// oldState is empty for a freshly spawned worker. err carries the exit
// error when the new state is StateDead.
type StateChangeCallback func(workerID uint64, oldState, newState State, err error)

// PoolOptions configures a new Pool.
type PoolOptions struct {
	// Binary is the converter executable (default "wkhtmltopdf").
	Binary string

	// MaxIdle is the number of pre-warmed workers, clamped to [0, 32].
	// It never limits concurrent conversions.
	MaxIdle int

	// MonitorInterval is the replenish/reap period, clamped to [100ms, 60s].
	// Zero selects the 5s default.
	MonitorInterval time.Duration

	// ConvertTimeout kills a conversion that runs longer (0 disables).
	ConvertTimeout time.Duration

	// OnStateChange is called after every worker state transition (optional).
	OnStateChange StateChangeCallback

	// OnStats is called after a monitor pass when the pool snapshot changed
	// (optional).
	OnStats func(Stats)

	// Logger for pool operations. If nil, uses slog.Default().
	Logger *slog.Logger
}

// ResolveMaxIdle maps a configured idle size to the effective one.
// Negative values select the host CPU count.
func ResolveMaxIdle(n int) int {
	if n < 0 {
		n = runtime.NumCPU()
	}
	return clampMaxIdle(n)
}

func clampMaxIdle(n int) int {
	return min(max(n, 0), MaxIdleLimit)
}

func clampInterval(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultMonitorInterval
	}
	return min(max(d, MinMonitorInterval), MaxMonitorInterval)
}
