package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/pdfnode/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for worker state changes, conversion results and pool statistics",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		events.NameWorkerState:         events.WorkerStateChangedEvent{},
		events.NameConversionCompleted: events.ConversionCompletedEvent{},
		events.NameConversionFailed:    events.ConversionFailedEvent{},
		events.NamePoolStats:           events.PoolStatsEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.WorkerStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ConversionCompletedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ConversionFailedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PoolStatsEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// New clients get the current pool state before any change
		if s.pool != nil {
			stats := s.pool.Stats()
			if err := send.Data(events.PoolStatsEvent{
				Idle:              stats.Idle,
				Running:           stats.Running,
				MaxIdle:           stats.MaxIdle,
				MonitorIntervalMs: stats.MonitorInterval.Milliseconds(),
				Timestamp:         time.Now().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
