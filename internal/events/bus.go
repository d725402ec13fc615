package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(ConversionCompletedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event is generic, so dispatch on the concrete type
	switch e := ev.(type) {
	case WorkerStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case ConversionCompletedEvent:
		event.Publish(b.dispatcher, e)
	case ConversionFailedEvent:
		event.Publish(b.dispatcher, e)
	case PoolStatsEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e PoolStatsEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(WorkerStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConversionCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConversionFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PoolStatsEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}

