package led

import (
	"sync"

	"github.com/smazurov/vop2ctl/internal/events"
	"github.com/smazurov/vop2ctl/internal/logging"
)

// Status LED patterns.
const (
	PatternUp     = "solid"
	PatternFailed = "blink"
)

// Manager mirrors display bring-up on the system LED: solid once a mode has
// been applied, blinking after a failure.
type Manager struct {
	controller Controller
	eventBus   *events.Bus
	logger     logging.Logger

	mu      sync.Mutex
	unsubs  []func()
	pattern string
}

// NewManager returns a manager driving controller from eventBus.
func NewManager(controller Controller, eventBus *events.Bus, logger logging.Logger) *Manager {
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// Start subscribes to bring-up events.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubs = append(m.unsubs,
		m.eventBus.Subscribe(func(e events.ModeAppliedEvent) {
			m.show(PatternUp, "output", e.Output, "mode", e.Mode)
		}),
		m.eventBus.Subscribe(func(e events.BringupFailedEvent) {
			m.show(PatternFailed, "stage", e.Stage, "error", e.Error)
		}),
	)
	m.logger.Info("LED manager started")
}

// Stop unsubscribes. The LED keeps its last pattern.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.unsubs {
		u()
	}
	m.unsubs = nil
	m.logger.Info("LED manager stopped")
}

// Pattern is the last pattern shown, empty before any event.
func (m *Manager) Pattern() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pattern
}

// GetController returns the controller for direct API access.
func (m *Manager) GetController() Controller {
	return m.controller
}

func (m *Manager) show(pattern string, args ...any) {
	err := m.controller.Set("system", true, pattern)

	m.mu.Lock()
	m.pattern = pattern
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("Failed to set system LED", "pattern", pattern, "error", err)
		return
	}
	m.logger.Debug("System LED updated", append([]any{"pattern", pattern}, args...)...)
}
