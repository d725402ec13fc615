package process

import "time"

// State represents the lifecycle state of a worker.
type State string

// Worker states.
const (
	StateIdle    State = "idle"    // Pre-spawned, waiting for a conversion
	StateRunning State = "running" // Bound to an in-flight conversion
	StateDead    State = "dead"    // Process exited, never reused
)

// Stats is a snapshot of the pool collections and limits.
type Stats struct {
	Idle            int
	Running         int
	MaxIdle         int
	MonitorInterval time.Duration
	Closed          bool
}
