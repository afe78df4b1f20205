// Package display brings a configured mode up on the VOP2 and owns the
// driver afterwards. Every driver call goes through a Service, which holds
// the single-owner lock the driver itself does not take.
package display

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/vop2ctl/internal/config"
	"github.com/smazurov/vop2ctl/internal/events"
	"github.com/smazurov/vop2ctl/internal/logging"
	"github.com/smazurov/vop2ctl/internal/metrics"
	"github.com/smazurov/vop2ctl/internal/mmio"
	"github.com/smazurov/vop2ctl/internal/panel"
	"github.com/smazurov/vop2ctl/internal/videomode"
	"github.com/smazurov/vop2ctl/internal/vop2"
)

// Bring-up stages reported in BringupFailedEvent.
const (
	StageVariant    = "variant"
	StageProbe      = "probe"
	StagePlane      = "configure_plane"
	StageTiming     = "set_timing"
	StageBackground = "set_background"
	StageColorBar   = "set_color_bar"
	StagePolarity   = "set_pin_polarity"
	StageOutput     = "set_output"
	StageEnable     = "enable_output"
	StageCommit     = "commit"
	StageWait       = "wait_commit"
	StagePanel      = "panel"
)

// StageError is a bring-up failure with the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Option configures a Service.
type Option func(*Service)

// WithEventBus publishes bring-up and commit events on bus.
func WithEventBus(bus *events.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithVariant selects the VOP2 family member.
func WithVariant(v vop2.Variant) Option {
	return func(s *Service) { s.variant = v }
}

// WithSim reports frame counts from a simulated block.
func WithSim(sim *vop2.Sim) Option {
	return func(s *Service) { s.sim = sim }
}

// WithDSIHost sets the host panels are attached to. The default records
// packets without sending them.
func WithDSIHost(h panel.DSIHost) Option {
	return func(s *Service) { s.host = h }
}

// WithPinOpener replaces panel.OpenGPIO for the panel power lines.
func WithPinOpener(open func(panel.GPIOConfig) (panel.Pins, error)) Option {
	return func(s *Service) { s.openPins = open }
}

// WithSleep replaces time.Sleep for driver and panel delays.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Service) { s.sleep = sleep }
}

// WithDriverOptions passes extra options to vop2.New.
func WithDriverOptions(opts ...vop2.Option) Option {
	return func(s *Service) { s.driverOpts = append(s.driverOpts, opts...) }
}

// Applied describes the mode currently on screen.
type Applied struct {
	Output   vop2.OutputMode  `json:"output"`
	Port     int              `json:"port"`
	Mode     string           `json:"mode" example:"800x1280@59.98"`
	Timing   videomode.Timing `json:"timing"`
	Polarity string           `json:"polarity" example:"0000"`
	Plane    string           `json:"plane" example:"esmart0"`
	Format   vop2.PixelFormat `json:"format"`
	Panel    string           `json:"panel,omitempty"`
	Bits     string           `json:"bits" example:"global|port0|esmart0"`
	Latched  bool             `json:"latched"`
	At       time.Time        `json:"at"`
}

// Service serialises access to one VOP2 instance.
type Service struct {
	mu sync.Mutex

	driver     *vop2.Driver
	variant    vop2.Variant
	sim        *vop2.Sim
	bus        *events.Bus
	logger     logging.Logger
	host       panel.DSIHost
	openPins   func(panel.GPIOConfig) (panel.Pins, error)
	sleep      func(time.Duration)
	now        func() time.Time
	driverOpts []vop2.Option

	pins    panel.Pins
	pinsCfg panel.GPIOConfig
	applied *Applied
}

// New builds a service over the register surface s.
func New(s mmio.Surface, opts ...Option) *Service {
	svc := &Service{
		variant: vop2.RK3568,
		sleep:   time.Sleep,
		now:     time.Now,
		openPins: func(cfg panel.GPIOConfig) (panel.Pins, error) {
			return panel.OpenGPIO(cfg)
		},
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = logging.GetLogger("display")
	}
	if svc.host == nil {
		svc.host = panel.NewLogHost(nil)
	}

	obs := &observer{bus: svc.bus, now: svc.now}
	dopts := append([]vop2.Option{
		vop2.WithVariant(svc.variant),
		vop2.WithObserver(obs),
		vop2.WithSleep(svc.sleep),
	}, svc.driverOpts...)
	svc.driver = vop2.New(s, dopts...)
	return svc
}

// Apply brings cfg up: probe, plane, timing, routing, commit, optional
// wait for the frame boundary, then the panel. The first failing stage
// aborts the sequence and is published as a BringupFailedEvent.
func (s *Service) Apply(ctx context.Context, cfg config.DisplayConfig) (*Applied, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied, err := s.apply(ctx, cfg)
	if err != nil {
		var se *StageError
		stage := "apply"
		if errors.As(err, &se) {
			stage = se.Stage
		}
		code := errorCode(err)
		metrics.RecordError(code)
		s.logger.Error("Display bring-up failed", "stage", stage, "code", code, "error", err)
		s.publish(events.BringupFailedEvent{
			Stage:     stage,
			Code:      code,
			Error:     err.Error(),
			Timestamp: s.now().Format(time.RFC3339),
		})
		return nil, err
	}

	s.applied = applied
	s.refreshPhases()
	metrics.RecordModeApplied()
	s.logger.Info("Display mode applied",
		"output", applied.Output,
		"port", applied.Port,
		"mode", applied.Mode,
		"panel", applied.Panel,
		"latched", applied.Latched)
	s.publish(events.ModeAppliedEvent{
		Port:      applied.Port,
		Output:    applied.Output.String(),
		Mode:      applied.Mode,
		Panel:     applied.Panel,
		Latched:   applied.Latched,
		Timestamp: applied.At.Format(time.RFC3339),
	})
	copied := *applied
	return &copied, nil
}

func (s *Service) apply(ctx context.Context, cfg config.DisplayConfig) (*Applied, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &StageError{StageVariant, err}
	}
	if v, _ := cfg.Variant(); v.Name != s.variant.Name {
		return nil, &StageError{StageVariant,
			fmt.Errorf("configured variant %s differs from running %s; restart to switch", v.Name, s.variant.Name)}
	}
	timing, err := cfg.ResolveTiming()
	if err != nil {
		return nil, &StageError{StageTiming, err}
	}

	if !s.driver.Ready() {
		if err := s.driver.Probe(); err != nil {
			return nil, &StageError{StageProbe, err}
		}
	}

	d := s.driver
	port, mode := cfg.Output.Port, cfg.Output.Interface
	pol := cfg.PolarityFor(timing)

	steps := []struct {
		stage string
		run   func() error
	}{
		{StagePlane, func() error { return d.ConfigurePlane(cfg.Plane.Esmart, cfg.PlaneFor(timing)) }},
		{StageTiming, func() error { return d.SetTiming(port, timing) }},
		{StageBackground, func() error {
			if len(cfg.Output.Background) != 3 {
				return nil
			}
			bg := cfg.Output.Background
			return d.SetBackground(port, bg[0], bg[1], bg[2])
		}},
		{StageColorBar, func() error { return d.SetColorBar(port, cfg.Output.ColorBar) }},
		{StagePolarity, func() error { return d.SetPinPolarity(mode, pol) }},
		{StageOutput, func() error { return d.SetOutput(mode, port) }},
		{StageEnable, func() error { return d.EnableOutput(mode) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return nil, &StageError{step.stage, err}
		}
	}

	bits, err := d.Commit()
	if err != nil {
		return nil, &StageError{StageCommit, err}
	}

	latched := false
	if cfg.Commit.Wait {
		wctx, cancel := context.WithTimeout(ctx, cfg.Commit.Timeout.Duration)
		err := d.WaitCommit(wctx, port)
		cancel()
		if err != nil {
			return nil, &StageError{StageWait, err}
		}
		latched = true
	}

	applied := &Applied{
		Output:   mode,
		Port:     port,
		Mode:     timing.String(),
		Timing:   timing,
		Polarity: pol.String(),
		Plane:    fmt.Sprintf("esmart%d", cfg.Plane.Esmart),
		Format:   cfg.Plane.Format,
		Bits:     bits.String(),
		Latched:  latched,
		At:       s.now(),
	}

	if model, ok := cfg.PanelModel(); ok {
		if err := s.enablePanel(model, cfg.Panel); err != nil {
			return nil, &StageError{StagePanel, err}
		}
		applied.Panel = model.Name
	}
	return applied, nil
}

// enablePanel powers and initialises the panel, reusing the GPIO lines of
// a previous bring-up when the wiring has not changed.
func (s *Service) enablePanel(model panel.Model, cfg config.PanelConfig) error {
	if s.pins != nil && s.pinsCfg != cfg.GPIO {
		if err := s.pins.Close(); err != nil {
			s.logger.Warn("Failed to release panel GPIO", "error", err)
		}
		s.pins = nil
	}
	if s.pins == nil && cfg.GPIO.Chip != "" {
		pins, err := s.openPins(cfg.GPIO)
		if err != nil {
			return err
		}
		s.pins, s.pinsCfg = pins, cfg.GPIO
	}

	opts := []panel.Option{panel.WithSleep(s.sleep)}
	if s.pins != nil {
		opts = append(opts, panel.WithPins(s.pins))
	}
	if cfg.Attempts > 0 {
		opts = append(opts, panel.WithAttempts(cfg.Attempts))
	}
	return panel.New(model, s.host, opts...).Enable()
}

// Close releases the panel lines.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pins == nil {
		return nil
	}
	err := s.pins.Close()
	s.pins = nil
	return err
}

func (s *Service) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// refreshPhases publishes the phase of every block. Callers hold mu.
func (s *Service) refreshPhases() {
	for _, b := range vop2.Blocks() {
		metrics.SetBlockPhase(b.String(), int(s.driver.Phase(b)))
	}
}

// errorCode is the metrics label for err.
func errorCode(err error) string {
	var ve *vop2.Error
	if errors.As(err, &ve) {
		return string(ve.Code)
	}
	var pe *panel.Error
	if errors.As(err, &pe) {
		return "PANEL"
	}
	return "INTERNAL"
}
