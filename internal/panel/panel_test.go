package panel

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

// flakyHost fails the write numbered failAt (0-based, counted across
// attempts) and accepts everything else.
type flakyHost struct {
	failAt   int
	writes   int
	attached int
	sent     [][]byte
}

var errNoAck = errors.New("no acknowledge")

func (h *flakyHost) Attach(DSIConfig) error {
	h.attached++
	return nil
}

func (h *flakyHost) WriteDCS(payload []byte) error {
	n := h.writes
	h.writes++
	if n == h.failAt {
		return errNoAck
	}
	h.sent = append(h.sent, payload)
	return nil
}

type pinEvent struct {
	pin   Pin
	value int
}

type mockPins struct {
	events []pinEvent
}

func (m *mockPins) Set(pin Pin, value int) error {
	m.events = append(m.events, pinEvent{pin, value})
	return nil
}

func (m *mockPins) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestTH101MB31IG002_Table(t *testing.T) {
	m := TH101MB31IG002

	if len(m.Init) != 26 {
		t.Fatalf("init sequence has %d commands, want 26", len(m.Init))
	}
	if first := m.Init[0].Payload; !bytes.Equal(first, []byte{0xE0, 0xAB, 0xBA}) {
		t.Errorf("first command = % x", first)
	}
	if c := m.Init[23].Payload; !bytes.Equal(c, []byte{0xF3, 0x00}) {
		t.Errorf("command 23 = % x, want f3 00", c)
	}
	if len(m.Init[8].Payload) != 39 {
		t.Errorf("gamma table B9 has %d bytes, want 39", len(m.Init[8].Payload))
	}

	sleepCmd := m.Init[24]
	if !bytes.Equal(sleepCmd.Payload, []byte{DCSExitSleepMode}) || sleepCmd.Delay != 120*time.Millisecond {
		t.Errorf("exit sleep = %+v", sleepCmd)
	}
	if on := m.Init[25]; !bytes.Equal(on.Payload, []byte{DCSSetDisplayOn}) || on.Delay != 0 {
		t.Errorf("display on = %+v", on)
	}
	if d := m.Init.Duration(); d != 120*time.Millisecond {
		t.Errorf("sequence delay = %v, want 120ms", d)
	}

	if m.DSI.Lanes != 4 || m.DSI.Format != FormatRGB888 {
		t.Errorf("DSI = %s", m.DSI)
	}
	if got := m.DSI.Flags.String(); got != "video|burst|eot|lpm" {
		t.Errorf("flags = %q", got)
	}
	if m.Timing.HTotal() != 944 || m.Timing.VTotal() != 1298 {
		t.Errorf("timing totals = %dx%d", m.Timing.HTotal(), m.Timing.VTotal())
	}
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	host := &flakyHost{failAt: 3}
	var slept []time.Duration

	err := Run(host, TH101MB31IG002.Init, func(d time.Duration) { slept = append(slept, d) })

	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if perr.Step != 3 || perr.Command != 0xB2 {
		t.Errorf("failed at step %d cmd 0x%02x, want step 3 cmd 0xb2", perr.Step, perr.Command)
	}
	if !errors.Is(err, errNoAck) {
		t.Errorf("error does not wrap the host error: %v", err)
	}
	if len(host.sent) != 3 {
		t.Errorf("%d commands sent before failure, want 3", len(host.sent))
	}
	if len(slept) != 0 {
		t.Errorf("slept %v before reaching a delayed command", slept)
	}
}

func TestRun_Delays(t *testing.T) {
	seq := Sequence{
		DCS(0x01).Wait(5 * time.Millisecond),
		DCS(0x02, 0x03),
		DCS(0x04).Wait(7 * time.Millisecond),
	}
	var slept []time.Duration
	if err := Run(&flakyHost{failAt: -1}, seq, func(d time.Duration) { slept = append(slept, d) }); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 2 || slept[0] != 5*time.Millisecond || slept[1] != 7*time.Millisecond {
		t.Errorf("sleeps = %v", slept)
	}
}

func TestRun_EmptyCommand(t *testing.T) {
	err := Run(&flakyHost{failAt: -1}, Sequence{{}}, func(time.Duration) {})
	if !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("error = %v, want ErrEmptyCommand", err)
	}
}

func TestPanel_EnableRetriesWithPowerCycle(t *testing.T) {
	host := &flakyHost{failAt: 5}
	pins := &mockPins{}
	var total time.Duration

	p := New(TH101MB31IG002, host,
		WithPins(pins),
		WithSleep(func(d time.Duration) { total += d }),
		WithLogger(testLogger()))

	if err := p.Enable(); err != nil {
		t.Fatalf("Enable() = %v", err)
	}
	if host.attached != 1 {
		t.Errorf("attached %d times, want 1", host.attached)
	}
	if len(pins.events) != 2*len(TH101MB31IG002.Power) {
		t.Errorf("%d pin events, want two power sequences", len(pins.events))
	}
	if pins.events[0] != (pinEvent{PinEnable, 1}) {
		t.Errorf("first pin event = %+v", pins.events[0])
	}
	want := 2*(50*time.Millisecond+200*time.Microsecond+6*time.Millisecond) + RetryMin + 120*time.Millisecond + 10*time.Millisecond
	if total != want {
		t.Errorf("total delay = %v, want %v", total, want)
	}
	if last := host.sent[len(host.sent)-1]; !bytes.Equal(last, []byte{DCSSetDisplayOn}) {
		t.Errorf("last command = % x", last)
	}
}

func TestPanel_EnableGivesUp(t *testing.T) {
	failing := &alwaysFail{}
	var slept []time.Duration
	p := New(TH101MB31IG002, failing, WithAttempts(3),
		WithSleep(func(d time.Duration) { slept = append(slept, d) }),
		WithLogger(testLogger()))

	err := p.Enable()
	if !errors.Is(err, errNoAck) {
		t.Fatalf("Enable() = %v", err)
	}
	if failing.writes != 3 {
		t.Errorf("%d writes, want one per attempt", failing.writes)
	}
	if len(slept) != 2 || slept[0] != RetryMin || slept[1] != 2*RetryMin {
		t.Errorf("retry pauses = %v", slept)
	}
}

type alwaysFail struct {
	writes int
}

func (a *alwaysFail) Attach(DSIConfig) error { return nil }

func (a *alwaysFail) WriteDCS([]byte) error {
	a.writes++
	return errNoAck
}

func TestLogHost(t *testing.T) {
	h := NewLogHost(testLogger())
	p := New(TH101MB31IG002, h, WithSleep(func(time.Duration) {}), WithLogger(testLogger()))
	if err := p.Enable(); err != nil {
		t.Fatal(err)
	}

	cfg, ok := h.Config()
	if !ok || cfg != TH101MB31IG002.DSI {
		t.Errorf("attached config = %+v, %v", cfg, ok)
	}
	pkts := h.Packets()
	if len(pkts) != len(TH101MB31IG002.Init) {
		t.Fatalf("%d packets, want %d", len(pkts), len(TH101MB31IG002.Init))
	}

	tests := []struct {
		idx  int
		want byte
	}{
		{0, DCSLongWrite},
		{23, DCSShortWriteParam},
		{24, DCSShortWrite},
		{25, DCSShortWrite},
	}
	for _, tt := range tests {
		if got := pkts[tt.idx].DataType; got != tt.want {
			t.Errorf("packet %d type = 0x%02x, want 0x%02x", tt.idx, got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"th101mb31ig002", "TH101MB31IG002", "boe,th101mb31ig002-28a"} {
		m, err := Lookup(name)
		if err != nil || m.Name != "th101mb31ig002" {
			t.Errorf("Lookup(%q) = %v, %v", name, m.Name, err)
		}
	}
	if _, err := Lookup("hx8394"); err == nil {
		t.Error("Lookup(hx8394) succeeded")
	}
}

func TestPowerOn(t *testing.T) {
	pins := &mockPins{}
	var slept []time.Duration
	if err := PowerOn(pins, TH101MB31IG002.Power, func(d time.Duration) { slept = append(slept, d) }); err != nil {
		t.Fatal(err)
	}
	want := []pinEvent{{PinEnable, 1}, {PinReset, 0}, {PinReset, 1}, {PinReset, 0}}
	if len(pins.events) != len(want) {
		t.Fatalf("events = %+v", pins.events)
	}
	for i := range want {
		if pins.events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, pins.events[i], want[i])
		}
	}
	if slept[0] != 50*time.Millisecond || slept[3] != 6*time.Millisecond {
		t.Errorf("sleeps = %v", slept)
	}
}
