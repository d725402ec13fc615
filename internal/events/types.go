package events

// Event type constants for kelindar/event.
const (
	TypeWorkerStateChanged uint32 = iota + 1
	TypeConversionCompleted
	TypeConversionFailed
	TypePoolStats
	TypeLogEntry
)

// SSE event names, also used as metric labels.
const (
	NameWorkerState         = "worker-state"
	NameConversionCompleted = "conversion-completed"
	NameConversionFailed    = "conversion-failed"
	NamePoolStats           = "pool-stats"
	NameLogEntry            = "message"
)

var names = map[uint32]string{
	TypeWorkerStateChanged:  NameWorkerState,
	TypeConversionCompleted: NameConversionCompleted,
	TypeConversionFailed:    NameConversionFailed,
	TypePoolStats:           NamePoolStats,
	TypeLogEntry:            NameLogEntry,
}

// Name returns the SSE event name of ev, or "unknown".
func Name(ev Event) string {
	if name, ok := names[ev.Type()]; ok {
		return name
	}
	return "unknown"
}

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// WorkerStateChangedEvent is published on every worker lifecycle transition.
type WorkerStateChangedEvent struct {
	WorkerID  uint64 `json:"worker_id" example:"3" doc:"Pool-unique worker identifier"`
	OldState  string `json:"old_state" example:"idle" doc:"Previous state, empty for a new worker"`
	NewState  string `json:"new_state" example:"running" doc:"New state: idle, running, dead"`
	Error     string `json:"error,omitempty" doc:"Exit error when the worker died"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for WorkerStateChangedEvent.
func (e WorkerStateChangedEvent) Type() uint32 { return TypeWorkerStateChanged }

// ConversionCompletedEvent is published when a PDF was streamed to the end.
type ConversionCompletedEvent struct {
	RequestID  string `json:"request_id" example:"c0ffee" doc:"Request identifier"`
	WorkerID   uint64 `json:"worker_id" example:"3" doc:"Worker that rendered the document"`
	Bytes      int64  `json:"bytes" example:"48213" doc:"PDF size in bytes"`
	DurationMs int64  `json:"duration_ms" example:"412" doc:"Conversion time in milliseconds"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConversionCompletedEvent.
func (e ConversionCompletedEvent) Type() uint32 { return TypeConversionCompleted }

// ConversionFailedEvent is published when a conversion ended with an error.
type ConversionFailedEvent struct {
	RequestID  string `json:"request_id" example:"c0ffee" doc:"Request identifier"`
	WorkerID   uint64 `json:"worker_id,omitempty" example:"3" doc:"Worker, if one was acquired"`
	Error      string `json:"error" example:"conversion timed out" doc:"Failure description"`
	DurationMs int64  `json:"duration_ms" example:"120000" doc:"Time until the failure in milliseconds"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConversionFailedEvent.
func (e ConversionFailedEvent) Type() uint32 { return TypeConversionFailed }

// PoolStatsEvent carries a pool snapshot after a monitor pass changed it.
type PoolStatsEvent struct {
	Idle              int    `json:"idle" example:"4" doc:"Pre-warmed workers"`
	Running           int    `json:"running" example:"1" doc:"Workers serving a conversion"`
	MaxIdle           int    `json:"max_idle" example:"4" doc:"Idle target"`
	MonitorIntervalMs int64  `json:"monitor_interval_ms" example:"5000" doc:"Monitor period in milliseconds"`
	Timestamp         string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PoolStatsEvent.
func (e PoolStatsEvent) Type() uint32 { return TypePoolStats }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"process" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
