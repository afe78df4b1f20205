package panel

import (
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/smazurov/vop2ctl/internal/logging"
)

// DefaultAttempts is how many times Enable tries the init sequence.
const DefaultAttempts = 3

// Pause between failed attempts, doubling from RetryMin up to RetryMax.
const (
	RetryMin = 20 * time.Millisecond
	RetryMax = 500 * time.Millisecond
)

// Option configures a Panel.
type Option func(*Panel)

// WithPins attaches control lines; without them the power sequence is skipped.
func WithPins(pins Pins) Option {
	return func(p *Panel) { p.pins = pins }
}

// WithSleep replaces time.Sleep for the fixed delays.
func WithSleep(sleep func(time.Duration)) Option {
	return func(p *Panel) { p.sleep = sleep }
}

// WithAttempts sets how many times Enable tries before giving up.
func WithAttempts(n int) Option {
	return func(p *Panel) {
		if n > 0 {
			p.attempts = n
		}
	}
}

// WithLogger sets the panel logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Panel) { p.logger = l }
}

// Panel is one attached panel instance.
type Panel struct {
	model    Model
	host     DSIHost
	pins     Pins
	sleep    func(time.Duration)
	attempts int
	logger   logging.Logger
}

// New binds a model to a DSI host.
func New(model Model, host DSIHost, opts ...Option) *Panel {
	p := &Panel{
		model:    model,
		host:     host,
		sleep:    time.Sleep,
		attempts: DefaultAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logging.GetLogger("panel")
	}
	return p
}

// Model returns the panel description.
func (p *Panel) Model() Model { return p.model }

// Enable attaches to the host, powers the panel and sends its init
// sequence. A failed attempt power-cycles the panel and starts over; only
// the last error is returned.
func (p *Panel) Enable() error {
	if err := p.host.Attach(p.model.DSI); err != nil {
		return fmt.Errorf("attach %s: %w", p.model.Name, err)
	}

	retry := &backoff.Backoff{Min: RetryMin, Max: RetryMax, Factor: 2}

	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if attempt > 1 {
			p.sleep(retry.Duration())
		}
		if err = p.enableOnce(); err == nil {
			p.sleep(p.model.Settle)
			p.logger.Info("Panel enabled",
				"model", p.model.Name,
				"dsi", p.model.DSI.String(),
				"mode", p.model.Timing.String(),
				"attempt", attempt)
			return nil
		}
		p.logger.Warn("Panel init failed", "model", p.model.Name, "attempt", attempt, "error", err)
	}
	return fmt.Errorf("enable %s after %d attempts: %w", p.model.Name, p.attempts, err)
}

func (p *Panel) enableOnce() error {
	if p.pins != nil {
		if err := PowerOn(p.pins, p.model.Power, p.sleep); err != nil {
			return err
		}
	}
	return Run(p.host, p.model.Init, p.sleep)
}

// Disable drops the enable line if one is attached.
func (p *Panel) Disable() error {
	if p.pins == nil {
		return nil
	}
	return p.pins.Set(PinEnable, 0)
}
