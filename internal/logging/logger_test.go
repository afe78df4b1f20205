package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	defer mutex.Unlock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig = Config{}
	isInitialized = false
	history = nil
	logCallback = nil
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"vop2":  "debug",
			"panel": "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"vop2", true, true, true},
		{"panel", false, false, true},
		{"display", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			h := GetLogger(tt.module).Handler()
			ctx := context.Background()
			if got := h.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := h.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := h.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	before := GetLogger("vop2")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"vop2": "debug"}})

	after := GetLogger("vop2")
	if before != after {
		t.Error("logger should be cached across Initialize")
	}
	if !before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("cached logger should follow the configured module level")
	}
}

func TestHistoryRecordsModuleAndAttrs(t *testing.T) {
	resetState()
	Initialize(Config{Level: "debug", History: 8})

	var seen []LogEntry
	SetLogCallback(func(e LogEntry) { seen = append(seen, e) })

	GetLogger("vop2").With("block", "esmart0").Info("Plane staged",
		"width", 800,
		"settle", 10*time.Millisecond,
		"error", errors.New("boom"),
		slog.Group("geom", "x", 1))

	entries := GetBuffer().ReadAll()
	if len(entries) != 1 {
		t.Fatalf("history holds %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Module != "vop2" || e.Level != "info" || e.Message != "Plane staged" {
		t.Errorf("entry = %+v", e)
	}
	want := map[string]any{
		"block":  "esmart0",
		"width":  int64(800),
		"settle": "10ms",
		"error":  "boom",
		"geom.x": int64(1),
	}
	for k, v := range want {
		if e.Attributes[k] != v {
			t.Errorf("attr %s = %#v, want %#v", k, e.Attributes[k], v)
		}
	}
	if _, ok := e.Attributes["module"]; ok {
		t.Error("module should be lifted out of the attributes")
	}
	if len(seen) != 1 {
		t.Errorf("callback saw %d entries, want 1", len(seen))
	}
}

func TestHistoryIgnoredBeforeInitialize(t *testing.T) {
	resetState()
	h := NewBufferHandler(slog.LevelDebug)
	slog.New(h).Info("early")
	if GetBuffer() != nil {
		t.Fatal("no history should exist before Initialize")
	}
}

func TestRingBufferWraps(t *testing.T) {
	rb := NewRingBuffer(3)
	if rb.ReadAll() != nil {
		t.Fatal("empty buffer should read nil")
	}
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		rb.Write(LogEntry{Message: msg})
	}
	if rb.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", rb.Count())
	}
	var got []string
	for _, e := range rb.ReadAll() {
		got = append(got, e.Message)
	}
	if strings.Join(got, "") != "cde" {
		t.Errorf("ReadAll() = %v, want [c d e]", got)
	}
}

func TestMultiHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	debug := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	info := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debug, info)).With("module", "vop2")
	logger.Debug("only once")
	logger.Info("twice")

	out := buf.String()
	if n := strings.Count(out, "only once"); n != 1 {
		t.Errorf("debug record written %d times, want 1", n)
	}
	if n := strings.Count(out, "twice"); n != 2 {
		t.Errorf("info record written %d times, want 2", n)
	}
	if !strings.Contains(out, "module=vop2") {
		t.Errorf("attrs not propagated: %s", out)
	}
}

func TestJournalFields(t *testing.T) {
	fields := map[string]string{}
	addAttrToFields(fields, slog.String("block", "post0"), nil)
	addAttrToFields(fields, slog.Group("bits", slog.Int("global", 1)), []string{"commit"})
	addAttrToFields(fields, slog.Float64("latency", 16.5), nil)

	want := map[string]string{
		"BLOCK":              "post0",
		"COMMIT_BITS_GLOBAL": "1",
		"LATENCY":            "16.5",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("%s = %q, want %q", k, fields[k], v)
		}
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			switch {
			case tt.isNil && got != nil:
				t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
			case !tt.isNil && got == nil:
				t.Errorf("parseLevel(%q) = nil, want %v", tt.input, tt.want)
			case !tt.isNil && *got != tt.want:
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, *got, tt.want)
			}
		})
	}
}
