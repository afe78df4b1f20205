package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards events of type T into ch for select-driven
// consumers such as SSE handlers. A full channel drops the event.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeDisplay forwards every display pipeline event into ch. Log
// records are left out; they have their own stream.
func SubscribeDisplay(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[ModeAppliedEvent](bus, ch),
		SubscribeToChannel[BringupFailedEvent](bus, ch),
		SubscribeToChannel[CommitRequestedEvent](bus, ch),
		SubscribeToChannel[CommitLatchedEvent](bus, ch),
		SubscribeToChannel[OutputChangedEvent](bus, ch),
		SubscribeToChannel[ConfigReloadedEvent](bus, ch),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
