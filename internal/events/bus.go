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

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(ModeAppliedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case ModeAppliedEvent:
		event.Publish(b.dispatcher, e)
	case BringupFailedEvent:
		event.Publish(b.dispatcher, e)
	case CommitRequestedEvent:
		event.Publish(b.dispatcher, e)
	case CommitLatchedEvent:
		event.Publish(b.dispatcher, e)
	case OutputChangedEvent:
		event.Publish(b.dispatcher, e)
	case ConfigReloadedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	case MetricsSnapshotEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects the events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e ModeAppliedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ModeAppliedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BringupFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CommitRequestedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CommitLatchedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(OutputChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConfigReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MetricsSnapshotEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
