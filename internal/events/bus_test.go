package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan ModeAppliedEvent, 1)

	unsub := bus.Subscribe(func(e ModeAppliedEvent) {
		received <- e
	})
	defer unsub()

	ev := ModeAppliedEvent{
		Port:      0,
		Output:    "mipi",
		Mode:      "800x1280@59.98",
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(ev)

	got := <-received
	if got.Output != ev.Output || got.Mode != ev.Mode {
		t.Errorf("received %+v, want %+v", got, ev)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan BringupFailedEvent, 1)

	unsub := bus.Subscribe(func(e BringupFailedEvent) {
		received <- e
	})

	bus.Publish(BringupFailedEvent{Stage: "probe"})
	<-received

	unsub()

	bus.Publish(BringupFailedEvent{Stage: "commit"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	requested := make(chan bool, 1)
	latched := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ CommitRequestedEvent) { requested <- true })
	defer unsub1()
	unsub2 := bus.Subscribe(func(_ CommitLatchedEvent) { latched <- true })
	defer unsub2()

	bus.Publish(CommitRequestedEvent{Bits: "global"})
	<-requested

	select {
	case <-latched:
		t.Fatal("latched subscriber received CommitRequestedEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ CommitLatchedEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(CommitLatchedEvent{
					Blocks:    []string{"sysctrl"},
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"ModeApplied", ModeAppliedEvent{Output: "mipi"}},
		{"BringupFailed", BringupFailedEvent{Stage: "probe"}},
		{"CommitRequested", CommitRequestedEvent{Bits: "global"}},
		{"CommitLatched", CommitLatchedEvent{Blocks: []string{"post0"}}},
		{"OutputChanged", OutputChangedEvent{Output: "hdmi", Action: "enabled"}},
		{"ConfigReloaded", ConfigReloadedEvent{Path: "display.toml"}},
		{"LogEntry", LogEntryEvent{Module: "vop2"}},
		{"MetricsSnapshot", MetricsSnapshotEvent{Commits: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case ModeAppliedEvent:
				unsub = bus.Subscribe(func(e ModeAppliedEvent) { received <- e })
			case BringupFailedEvent:
				unsub = bus.Subscribe(func(e BringupFailedEvent) { received <- e })
			case CommitRequestedEvent:
				unsub = bus.Subscribe(func(e CommitRequestedEvent) { received <- e })
			case CommitLatchedEvent:
				unsub = bus.Subscribe(func(e CommitLatchedEvent) { received <- e })
			case OutputChangedEvent:
				unsub = bus.Subscribe(func(e OutputChangedEvent) { received <- e })
			case ConfigReloadedEvent:
				unsub = bus.Subscribe(func(e ConfigReloadedEvent) { received <- e })
			case LogEntryEvent:
				unsub = bus.Subscribe(func(e LogEntryEvent) { received <- e })
			case MetricsSnapshotEvent:
				unsub = bus.Subscribe(func(e MetricsSnapshotEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	if unsub == nil {
		t.Fatal("Subscribe returned nil for unknown handler")
	}
	unsub()
}

func TestEventJSON(t *testing.T) {
	data, err := json.Marshal(CommitLatchedEvent{
		Blocks:    []string{"sysctrl", "post0"},
		LatencyMs: 16.6,
		Timestamp: "2025-01-27T10:30:00Z",
	})
	if err != nil {
		t.Fatal(err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if result["latency_ms"] != 16.6 {
		t.Errorf("latency_ms = %v", result["latency_ms"])
	}
	if blocks, ok := result["blocks"].([]any); !ok || len(blocks) != 2 {
		t.Errorf("blocks = %v", result["blocks"])
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[OutputChangedEvent](bus, ch)
	defer unsub()

	bus.Publish(OutputChangedEvent{Output: "hdmi", Action: "routed", Port: 1})

	received := <-ch
	ev, ok := received.(OutputChangedEvent)
	if !ok {
		t.Fatalf("Expected OutputChangedEvent, got %T", received)
	}
	if ev.Port != 1 {
		t.Errorf("port = %d, want 1", ev.Port)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any)

	unsub := SubscribeToChannel[ModeAppliedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(ModeAppliedEvent{Output: "mipi"})
		done <- true
	}()

	<-done
}

func TestSubscribeDisplay_SkipsLogEntries(t *testing.T) {
	bus := New()
	ch := make(chan any, 4)
	unsub := SubscribeDisplay(bus, ch)
	defer unsub()

	bus.Publish(LogEntryEvent{Message: "noise"})
	bus.Publish(CommitLatchedEvent{Blocks: []string{"esmart0"}})

	select {
	case ev := <-ch:
		if _, ok := ev.(CommitLatchedEvent); !ok {
			t.Fatalf("first event = %T, want CommitLatchedEvent", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no display event forwarded")
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected extra event %T", ev)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestSubscribeToChannel_DropsWhenFull(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)
	unsub := SubscribeToChannel[OutputChangedEvent](bus, ch)
	defer unsub()

	bus.Publish(OutputChangedEvent{Output: "mipi", Action: "enabled"})
	bus.Publish(OutputChangedEvent{Output: "hdmi", Action: "enabled"})

	deadline := time.After(time.Second)
	for len(ch) == 0 {
		select {
		case <-deadline:
			t.Fatal("no event forwarded")
		case <-time.After(time.Millisecond):
		}
	}
	time.Sleep(10 * time.Millisecond)
	if len(ch) != 1 {
		t.Fatalf("channel holds %d events, want 1", len(ch))
	}
}
