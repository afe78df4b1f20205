package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// DefaultHistory is the number of records kept for /api/logs/stream.
const DefaultHistory = 500

// Logger is the subset of *slog.Logger that packages depend on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var (
	mutex           sync.RWMutex
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{}
	isInitialized   bool
	history         *RingBuffer
	logCallback     LogCallback
)

// Config is the [logging] section of vop2ctl.toml.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	History int               `toml:"history"`
	Modules map[string]string `toml:"modules"`
}

// Initialize applies cfg to the default logger and to every module logger
// handed out so far.
func Initialize(cfg Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = cfg
	isInitialized = true

	size := cfg.History
	if size <= 0 {
		size = DefaultHistory
	}
	history = NewRingBuffer(size)

	globalLevelVar.Set(levelOr(cfg.Level, slog.LevelInfo))

	// Cached loggers keep their handlers; only the level moves. Their
	// history handler finds the buffer at write time.
	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(module))
	}

	slog.SetDefault(slog.New(createHandler(cfg.Format, globalLevelVar)))
}

// GetBuffer returns the record history, or nil before Initialize.
func GetBuffer() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return history
}

// SetLogCallback registers fn to receive every record after Initialize.
func SetLogCallback(fn LogCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	logCallback = fn
}

// GetLogger returns the logger for module. Loggers are cached, and a logger
// obtained before Initialize picks up its configured level afterwards.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	logger, ok := moduleLoggers[module]
	mutex.RUnlock()
	if ok {
		return logger
	}

	mutex.Lock()
	defer mutex.Unlock()
	if logger, ok := moduleLoggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if isInitialized {
		levelVar.Set(moduleLevel(module))
		format = globalConfig.Format
	} else {
		levelVar.Set(slog.LevelInfo)
	}

	logger = slog.New(createHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// moduleLevel resolves the configured level for module. Callers hold mutex.
func moduleLevel(module string) slog.Level {
	level := levelOr(globalConfig.Level, slog.LevelInfo)
	if s, ok := globalConfig.Modules[module]; ok {
		level = levelOr(s, level)
	}
	return level
}

// createHandler fans records out to stdout, the journal when present and
// the in-memory history.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if isStdoutAvailable() {
		handlers = append(handlers, stdout)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// isStdoutAvailable is false when stdout is /dev/null or closed.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

// parseLevel maps a config string to a level, nil when unrecognised.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}

func levelOr(s string, fallback slog.Level) slog.Level {
	if l := parseLevel(s); l != nil {
		return *l
	}
	return fallback
}
