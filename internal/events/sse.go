package events

import (
	"github.com/kelindar/event"

	"github.com/smazurov/pdfnode/internal/metrics"
)

// SubscribeToChannel bridges kelindar/event callback-based subscriptions to
// channels for the SSE select loops. A slow client never blocks the
// publisher: events that do not fit in ch are dropped and counted.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			metrics.RecordDroppedEvent(Name(e))
		}
	})
}
