package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

const minimalDisplay = `
[registers]
simulate = true

[output]
port = %d
`

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// writeDisplay writes display.toml in dir with the given port.
func writeDisplay(t *testing.T, path string, port int) {
	t.Helper()
	if err := os.WriteFile(path, fmt.Appendf(nil, minimalDisplay, port), 0o644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, path string, opts ...WatcherOption[DisplayConfig]) *Watcher[DisplayConfig] {
	t.Helper()
	opts = append([]WatcherOption[DisplayConfig]{WithDebounce[DisplayConfig](50 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, LoadDisplay, newTestLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	return w
}

func receive(t *testing.T, ch <-chan DisplayConfig) DisplayConfig {
	t.Helper()
	select {
	case cfg := <-ch:
		return cfg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
		return DisplayConfig{}
	}
}

func TestWatcher_ReloadOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.toml")
	writeDisplay(t, path, 0)

	received := make(chan DisplayConfig, 1)
	w := startWatcher(t, path)
	w.OnReload(func(cfg DisplayConfig) { received <- cfg })

	writeDisplay(t, path, 2)
	if cfg := receive(t, received); cfg.Output.Port != 2 {
		t.Errorf("Output.Port = %d, want 2", cfg.Output.Port)
	}
}

func TestWatcher_ReloadOnRenameReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "display.toml")
	writeDisplay(t, path, 0)

	received := make(chan DisplayConfig, 1)
	w := startWatcher(t, path)
	w.OnReload(func(cfg DisplayConfig) { received <- cfg })

	tmp := filepath.Join(dir, ".display.toml.swp")
	writeDisplay(t, tmp, 3)
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	if cfg := receive(t, received); cfg.Output.Port != 3 {
		t.Errorf("Output.Port = %d, want 3", cfg.Output.Port)
	}
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "display.toml")
	writeDisplay(t, path, 0)

	var calls atomic.Int32
	w := startWatcher(t, path)
	w.OnReload(func(DisplayConfig) { calls.Add(1) })

	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("%d reloads for an unrelated file, want 0", n)
	}
}

func TestWatcher_Unsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.toml")
	writeDisplay(t, path, 0)

	first := make(chan DisplayConfig, 4)
	var second atomic.Int32
	w := startWatcher(t, path)
	w.OnReload(func(cfg DisplayConfig) { first <- cfg })
	unsub := w.OnReload(func(DisplayConfig) { second.Add(1) })

	writeDisplay(t, path, 1)
	receive(t, first)
	unsub()

	writeDisplay(t, path, 2)
	if cfg := receive(t, first); cfg.Output.Port != 2 {
		t.Errorf("Output.Port = %d, want 2", cfg.Output.Port)
	}
	if n := second.Load(); n != 1 {
		t.Errorf("unsubscribed handler called %d times, want 1", n)
	}
}

func TestWatcher_InvalidFileKeepsHandlersQuiet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.toml")
	writeDisplay(t, path, 0)

	errs := make(chan error, 1)
	received := make(chan DisplayConfig, 1)
	w := startWatcher(t, path, WithErrorHandler[DisplayConfig](func(err error) { errs <- err }))
	w.OnReload(func(cfg DisplayConfig) { received <- cfg })

	writeDisplay(t, path, 7)

	select {
	case <-errs:
	case <-received:
		t.Fatal("handler called for an invalid port")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestWatcher_Debounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.toml")
	writeDisplay(t, path, 0)

	var count atomic.Int32
	var last atomic.Int32
	w := startWatcher(t, path, WithDebounce[DisplayConfig](200*time.Millisecond))
	w.OnReload(func(cfg DisplayConfig) {
		count.Add(1)
		last.Store(int32(cfg.Output.Port))
	})

	for port := 1; port <= 3; port++ {
		writeDisplay(t, path, port)
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if n := count.Load(); n != 1 {
		t.Errorf("%d reloads, want 1", n)
	}
	if p := last.Load(); p != 3 {
		t.Errorf("last port = %d, want 3", p)
	}
}

func TestWatcher_Stop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.toml")
	writeDisplay(t, path, 0)

	var count atomic.Int32
	w := NewConfigWatcher(path, LoadDisplay, newTestLogger(), WithDebounce[DisplayConfig](50*time.Millisecond))
	w.OnReload(func(DisplayConfig) { count.Add(1) })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}

	writeDisplay(t, path, 1)
	time.Sleep(200 * time.Millisecond)
	if n := count.Load(); n != 0 {
		t.Errorf("%d reloads after Stop, want 0", n)
	}
}
