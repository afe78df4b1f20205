package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/smazurov/vop2ctl/internal/config"
	"github.com/smazurov/vop2ctl/internal/display"
	"github.com/smazurov/vop2ctl/internal/events"
	"github.com/smazurov/vop2ctl/internal/logging"
	"github.com/smazurov/vop2ctl/internal/panel"
	"github.com/smazurov/vop2ctl/internal/vop2"
)

type testEnv struct {
	api humatest.TestAPI
	svc *display.Service
	sim *vop2.Sim
	bus *events.Bus
}

func newTestEnv(t *testing.T, opts *Options) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	env := &testEnv{sim: vop2.NewSim(), bus: events.New()}
	env.svc = display.New(env.sim,
		display.WithLogger(logger),
		display.WithSim(env.sim),
		display.WithEventBus(env.bus),
		display.WithDSIHost(panel.NewLogHost(logger)),
		display.WithSleep(func(time.Duration) {}),
	)
	if opts == nil {
		opts = &Options{}
	}
	opts.Display = env.svc
	opts.EventBus = env.bus
	env.api = humatest.Wrap(t, NewServer(opts).GetAPI())
	return env
}

// bringUp applies the default panel mode and latches it.
func (e *testEnv) bringUp(t *testing.T) {
	t.Helper()
	cfg := config.DefaultDisplay()
	cfg.Registers.Simulate = true
	cfg.Commit.Wait = false
	if _, err := e.svc.Apply(context.Background(), cfg); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	e.sim.VBlank()
}

func decode[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.api.Get("/api/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if got := decode[map[string]any](t, resp.Body.String()); got["ready"] != false {
		t.Errorf("ready before bring-up = %v", got["ready"])
	}

	env.bringUp(t)
	if got := decode[map[string]any](t, env.api.Get("/api/health").Body.String()); got["ready"] != true {
		t.Errorf("ready after bring-up = %v", got["ready"])
	}
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.api.Get("/api/version")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if got := decode[map[string]any](t, resp.Body.String()); got["go_version"] == "" {
		t.Errorf("version body = %v", got)
	}
}

func TestDisplayStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	env.bringUp(t)

	resp := env.api.Get("/api/display")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	st := decode[display.Status](t, resp.Body.String())
	if !st.Ready || !st.Simulated || st.Variant != "rk3568" {
		t.Errorf("status = %+v", st)
	}
	if st.Applied == nil || st.Applied.Panel != panel.TH101MB31IG002.Name {
		t.Errorf("applied = %+v", st.Applied)
	}
	for _, b := range st.Blocks {
		if b.Phase != "active" {
			t.Errorf("%s phase = %s after vblank", b.Name, b.Phase)
		}
	}
}

func TestRegisters(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.api.Get("/api/display/registers?block=sysctrl")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	data := decode[struct {
		Block     string            `json:"block"`
		Registers map[string]uint32 `json:"registers"`
	}](t, resp.Body.String())
	if data.Registers["0x0000"] != vop2.SimVersion {
		t.Errorf("version register = 0x%x", data.Registers["0x0000"])
	}

	if resp := env.api.Get("/api/display/registers?block=cluster7"); resp.Code != http.StatusBadRequest {
		t.Errorf("unknown block status = %d, want 400", resp.Code)
	}
}

func TestOutputRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	if resp := env.api.Put("/api/display/outputs/hdmi/route", map[string]any{"port": 1}); resp.Code != http.StatusConflict {
		t.Errorf("route before probe = %d, want 409", resp.Code)
	}

	env.bringUp(t)

	tests := []struct {
		name   string
		do     func() int
		status int
	}{
		{"route hdmi", func() int {
			return env.api.Put("/api/display/outputs/hdmi/route", map[string]any{"port": 1}).Code
		}, http.StatusOK},
		{"enable hdmi", func() int {
			return env.api.Post("/api/display/outputs/hdmi/enable").Code
		}, http.StatusOK},
		{"polarity from flags", func() int {
			return env.api.Put("/api/display/outputs/hdmi/polarity", map[string]any{"flags": []string{"hsync_high"}}).Code
		}, http.StatusOK},
		{"polarity too wide", func() int {
			return env.api.Put("/api/display/outputs/hdmi/polarity", map[string]any{"polarity": 0x1f}).Code
		}, http.StatusBadRequest},
		{"polarity and flags", func() int {
			return env.api.Put("/api/display/outputs/hdmi/polarity", map[string]any{"polarity": 1, "flags": []string{}}).Code
		}, http.StatusBadRequest},
		{"bad flag", func() int {
			return env.api.Put("/api/display/outputs/hdmi/polarity", map[string]any{"flags": []string{"sideways"}}).Code
		}, http.StatusBadRequest},
		{"unwired lvds", func() int {
			return env.api.Post("/api/display/outputs/lvds/enable").Code
		}, http.StatusBadRequest},
		{"unknown interface", func() int {
			return env.api.Post("/api/display/outputs/vga/enable").Code
		}, http.StatusBadRequest},
		{"port out of range", func() int {
			return env.api.Put("/api/display/outputs/mipi/route", map[string]any{"port": 7}).Code
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if got := tt.do(); got != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.name, got, tt.status)
		}
	}

	st := env.svc.Status()
	for _, r := range st.Routes {
		if r.Mode == vop2.OutputHDMI && (!r.Enabled || r.Port != 1 || r.Polarity != vop2.PolHSyncHigh) {
			t.Errorf("hdmi route = %+v", r)
		}
	}
}

func TestCommit(t *testing.T) {
	env := newTestEnv(t, &Options{CommitTimeout: 5 * time.Millisecond})
	env.bringUp(t)

	if resp := env.api.Post("/api/display/outputs/hdmi/enable"); resp.Code != http.StatusOK {
		t.Fatalf("enable status = %d", resp.Code)
	}

	resp := env.api.Post("/api/display/commit", map[string]any{"wait": true})
	if resp.Code != http.StatusGatewayTimeout {
		t.Fatalf("commit without vblank = %d, want 504", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), string(vop2.ErrCommitTimeout)) {
		t.Errorf("body does not name the code: %s", resp.Body.String())
	}

	env.sim.VBlank()
	resp = env.api.Post("/api/display/commit", map[string]any{"wait": true, "timeout_ms": 50})
	if resp.Code != http.StatusOK {
		t.Fatalf("commit after vblank = %d: %s", resp.Code, resp.Body.String())
	}
	if res := decode[display.CommitResult](t, resp.Body.String()); !res.Latched {
		t.Errorf("result = %+v", res)
	}
}

func TestBasicAuth(t *testing.T) {
	env := newTestEnv(t, &Options{AuthUsername: "admin", AuthPassword: "secret"})
	creds := base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	wrong := base64.StdEncoding.EncodeToString([]byte("admin:nope"))

	tests := []struct {
		name   string
		path   string
		args   []any
		status int
	}{
		{"health is open", "/api/health", nil, http.StatusOK},
		{"no credentials", "/api/display", nil, http.StatusUnauthorized},
		{"wrong password", "/api/display", []any{"Authorization: Basic " + wrong}, http.StatusUnauthorized},
		{"bearer", "/api/display", []any{"Authorization: Bearer abc"}, http.StatusUnauthorized},
		{"header", "/api/display", []any{"Authorization: Basic " + creds}, http.StatusOK},
		{"query", "/api/display?auth=" + creds, nil, http.StatusOK},
	}
	for _, tt := range tests {
		if resp := env.api.Get(tt.path, tt.args...); resp.Code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.name, resp.Code, tt.status)
		}
	}
}

func TestToHTTPError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&vop2.Error{Code: vop2.ErrValueTooWide}, http.StatusBadRequest},
		{&vop2.Error{Code: vop2.ErrInvalidGeometry}, http.StatusBadRequest},
		{&vop2.Error{Code: vop2.ErrHardwareNotReady}, http.StatusConflict},
		{&vop2.Error{Code: vop2.ErrCommitTimeout}, http.StatusGatewayTimeout},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		se, ok := toHTTPError("x", tt.err).(interface{ GetStatus() int })
		if !ok || se.GetStatus() != tt.status {
			t.Errorf("%v: status = %v, want %d", tt.err, se, tt.status)
		}
	}
}

func TestLogEvent(t *testing.T) {
	ch := make(chan events.LogEntryEvent, 1)
	bus := events.New()
	defer bus.Subscribe(func(e events.LogEntryEvent) { ch <- e })()

	at := time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC)
	PublishLogs(bus)(logging.LogEntry{
		Timestamp:  at,
		Level:      "info",
		Module:     "vop2",
		Message:    "VOP2 probed",
		Attributes: map[string]any{"port": 0},
	})

	select {
	case ev := <-ch:
		if ev.Module != "vop2" || ev.Timestamp != "2025-01-27T10:30:00Z" || ev.Attributes["port"] != 0 {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("log entry not published")
	}
}
