package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "events",
	Name:      "dropped_total",
	Help:      "Events not delivered to a slow SSE client",
}, []string{"event"})

// RecordDroppedEvent counts one event an SSE subscriber had no room for.
func RecordDroppedEvent(name string) {
	DroppedEvents(name).Inc()
}

// DroppedEvents returns the drop counter of one event name.
func DroppedEvents(name string) prometheus.Counter {
	return eventsDropped.WithLabelValues(name)
}
