package converter

import (
	"time"

	"github.com/smazurov/pdfnode/internal/events"
	"github.com/smazurov/pdfnode/internal/metrics"
	"github.com/smazurov/pdfnode/internal/process"
)

// PoolHooks returns the callbacks that report pool activity to the event
// bus and Prometheus. Wire them into process.PoolOptions.
func PoolHooks(bus EventPublisher) (process.StateChangeCallback, func(process.Stats)) {
	onStateChange := func(workerID uint64, oldState, newState process.State, err error) {
		metrics.RecordWorkerTransition(string(oldState), string(newState))
		if bus == nil {
			return
		}
		ev := events.WorkerStateChangedEvent{
			WorkerID:  workerID,
			OldState:  string(oldState),
			NewState:  string(newState),
			Timestamp: time.Now().Format(time.RFC3339),
		}
		if err != nil {
			ev.Error = err.Error()
		}
		bus.Publish(ev)
	}

	onStats := func(stats process.Stats) {
		if bus == nil {
			return
		}
		bus.Publish(events.PoolStatsEvent{
			Idle:              stats.Idle,
			Running:           stats.Running,
			MaxIdle:           stats.MaxIdle,
			MonitorIntervalMs: stats.MonitorInterval.Milliseconds(),
			Timestamp:         time.Now().Format(time.RFC3339),
		})
	}

	return onStateChange, onStats
}
