package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/vop2ctl/internal/devicetree"
	"github.com/smazurov/vop2ctl/internal/panel"
	"github.com/smazurov/vop2ctl/internal/videomode"
	"github.com/smazurov/vop2ctl/internal/vop2"
)

// Defaults for display.toml.
const (
	DefaultDevice        = "/dev/mem"
	DefaultRegisterBase  = 0xfe040000
	DefaultCommitTimeout = 100 * time.Millisecond
	DefaultSimPeriod     = 16667 * time.Microsecond

	// VariantAuto takes the variant and register base from the device tree.
	VariantAuto = "auto"
)

// Duration is a time.Duration written as "100ms" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DisplayConfig is display.toml: what to put on screen and how to reach
// the hardware.
type DisplayConfig struct {
	Registers RegistersConfig `toml:"registers" json:"registers"`
	Output    OutputConfig    `toml:"output" json:"output"`
	Plane     PlaneConfig     `toml:"plane" json:"plane"`
	Panel     PanelConfig     `toml:"panel" json:"panel"`
	Timing    *TimingConfig   `toml:"timing" json:"timing,omitempty"`
	Commit    CommitConfig    `toml:"commit" json:"commit"`
}

// RegistersConfig locates the VOP2 register window.
type RegistersConfig struct {
	Device  string `toml:"device" json:"device"`
	Base    uint64 `toml:"base" json:"base"`
	Variant string `toml:"variant" json:"variant"`
	// DeviceTree is read when Variant is "auto".
	DeviceTree string   `toml:"device_tree" json:"device_tree,omitempty"`
	Simulate   bool     `toml:"simulate" json:"simulate"`
	SimPeriod  Duration `toml:"sim_period" json:"sim_period"`
}

// OutputConfig selects the physical interface and the port feeding it.
type OutputConfig struct {
	Interface vop2.OutputMode `toml:"interface" json:"interface"`
	Port      int             `toml:"port" json:"port"`
	// Polarity overrides the nibble derived from the timing flags.
	Polarity   *uint32  `toml:"polarity" json:"polarity,omitempty"`
	Background []uint32 `toml:"background" json:"background,omitempty"`
	ColorBar   bool     `toml:"color_bar" json:"color_bar"`
}

// PlaneConfig describes the framebuffer. A zero size means the active
// area of the timing.
type PlaneConfig struct {
	Esmart      int              `toml:"esmart" json:"esmart"`
	Format      vop2.PixelFormat `toml:"format" json:"format"`
	Framebuffer uint64           `toml:"framebuffer" json:"framebuffer"`
	Width       uint32           `toml:"width" json:"width"`
	Height      uint32           `toml:"height" json:"height"`
	X           uint32           `toml:"x" json:"x"`
	Y           uint32           `toml:"y" json:"y"`
	DspWidth    uint32           `toml:"dsp_width" json:"dsp_width"`
	DspHeight   uint32           `toml:"dsp_height" json:"dsp_height"`
}

// PanelConfig names the attached panel. An empty model drives no panel.
type PanelConfig struct {
	Model    string           `toml:"model" json:"model"`
	Attempts int              `toml:"attempts" json:"attempts"`
	GPIO     panel.GPIOConfig `toml:"gpio" json:"gpio"`
}

// TimingConfig overrides the panel timing.
type TimingConfig struct {
	PixelClock  uint32   `toml:"pixel_clock" json:"pixel_clock"`
	HActive     uint32   `toml:"hactive" json:"hactive"`
	HFrontPorch uint32   `toml:"hfront_porch" json:"hfront_porch"`
	HBackPorch  uint32   `toml:"hback_porch" json:"hback_porch"`
	HSyncLen    uint32   `toml:"hsync_len" json:"hsync_len"`
	VActive     uint32   `toml:"vactive" json:"vactive"`
	VFrontPorch uint32   `toml:"vfront_porch" json:"vfront_porch"`
	VBackPorch  uint32   `toml:"vback_porch" json:"vback_porch"`
	VSyncLen    uint32   `toml:"vsync_len" json:"vsync_len"`
	Flags       []string `toml:"flags" json:"flags,omitempty"`
}

// CommitConfig controls waiting for the frame boundary after a commit.
type CommitConfig struct {
	Wait    bool     `toml:"wait" json:"wait"`
	Timeout Duration `toml:"timeout" json:"timeout"`
}

// DefaultDisplay is the PineTab2 layout: BOE panel on MIPI from port 0.
func DefaultDisplay() DisplayConfig {
	return DisplayConfig{
		Registers: RegistersConfig{
			Device:     DefaultDevice,
			Base:       DefaultRegisterBase,
			Variant:    vop2.RK3568.Name,
			DeviceTree: devicetree.DefaultPath,
			SimPeriod:  Duration{DefaultSimPeriod},
		},
		Output: OutputConfig{Interface: vop2.OutputMIPI},
		Plane:  PlaneConfig{Format: vop2.FormatRGB888},
		Panel: PanelConfig{
			Model:    panel.TH101MB31IG002.Name,
			Attempts: panel.DefaultAttempts,
			GPIO:     panel.GPIOConfig{Enable: -1, Reset: -1},
		},
		Commit: CommitConfig{Wait: true, Timeout: Duration{DefaultCommitTimeout}},
	}
}

// LoadDisplay reads and validates display.toml. Keys absent from the file
// keep their DefaultDisplay values; unknown keys are an error.
func LoadDisplay(path string) (DisplayConfig, error) {
	cfg := DefaultDisplay()
	f, err := os.Open(path)
	if err != nil {
		return DisplayConfig{}, err
	}
	defer f.Close()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return DisplayConfig{}, fmt.Errorf("%s: %s", path, strict.String())
		}
		return DisplayConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Registers.Variant == VariantAuto {
		if cfg.Registers, err = cfg.Registers.Detect(); err != nil {
			return DisplayConfig{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return DisplayConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Detect replaces Variant with the compatible of the VOP2 node in the
// device tree and Base with its first register window.
func (r RegistersConfig) Detect() (RegistersConfig, error) {
	info, err := devicetree.Load(r.DeviceTree)
	if err != nil {
		return r, fmt.Errorf("detect variant: %w", err)
	}
	if info.VOP == nil {
		return r, fmt.Errorf("detect variant: %w", devicetree.ErrNoVOP)
	}
	r.Variant = info.VOP.Compatible[0]
	if info.VOP.Base != 0 {
		r.Base = info.VOP.Base
	}
	return r, nil
}

// Validate checks everything that can be checked without hardware.
func (c DisplayConfig) Validate() error {
	variant, err := c.Variant()
	if err != nil {
		return err
	}
	if !c.Registers.Simulate && c.Registers.Device == "" {
		return errors.New("registers.device is required unless simulate is set")
	}
	if c.Registers.Simulate && c.Registers.SimPeriod.Duration <= 0 {
		return errors.New("registers.sim_period must be positive")
	}
	if !variant.Supports(c.Output.Interface) {
		return fmt.Errorf("output.interface %s is not wired on %s", c.Output.Interface, variant.Name)
	}
	if c.Output.Port < 0 || c.Output.Port >= vop2.NumPorts {
		return fmt.Errorf("output.port %d out of range 0-%d", c.Output.Port, vop2.NumPorts-1)
	}
	if c.Output.Polarity != nil && *c.Output.Polarity > 0xf {
		return fmt.Errorf("output.polarity 0x%x does not fit in 4 bits", *c.Output.Polarity)
	}
	if n := len(c.Output.Background); n != 0 && n != 3 {
		return fmt.Errorf("output.background needs 3 components, got %d", n)
	}
	if c.Plane.Esmart < 0 || c.Plane.Esmart >= vop2.NumEsmart {
		return fmt.Errorf("plane.esmart %d out of range 0-%d", c.Plane.Esmart, vop2.NumEsmart-1)
	}
	if c.Panel.Model != "" {
		if _, err := panel.Lookup(c.Panel.Model); err != nil {
			return err
		}
	}
	t, err := c.ResolveTiming()
	if err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("timing: %w", err)
	}
	if c.Commit.Wait && c.Commit.Timeout.Duration <= 0 {
		return errors.New("commit.timeout must be positive when commit.wait is set")
	}
	return nil
}

// Variant returns the configured family member.
func (c DisplayConfig) Variant() (vop2.Variant, error) {
	return vop2.ParseVariant(c.Registers.Variant)
}

// PanelModel returns the configured panel, false when none is attached.
func (c DisplayConfig) PanelModel() (panel.Model, bool) {
	if c.Panel.Model == "" {
		return panel.Model{}, false
	}
	m, err := panel.Lookup(c.Panel.Model)
	return m, err == nil
}

// ResolveTiming returns the [timing] override, else the panel's timing.
func (c DisplayConfig) ResolveTiming() (videomode.Timing, error) {
	if c.Timing != nil {
		return c.Timing.Timing()
	}
	if m, ok := c.PanelModel(); ok {
		return m.Timing, nil
	}
	return videomode.Timing{}, errors.New("no [timing] section and no panel model to take it from")
}

// PlaneFor builds the plane configuration for timing t.
func (c DisplayConfig) PlaneFor(t videomode.Timing) vop2.PlaneConfig {
	p := vop2.PlaneConfig{
		Port:        c.Output.Port,
		Format:      c.Plane.Format,
		Width:       c.Plane.Width,
		Height:      c.Plane.Height,
		DspX:        c.Plane.X,
		DspY:        c.Plane.Y,
		DspWidth:    c.Plane.DspWidth,
		DspHeight:   c.Plane.DspHeight,
		Framebuffer: c.Plane.Framebuffer,
	}
	if p.Width == 0 {
		p.Width = t.HActive
	}
	if p.Height == 0 {
		p.Height = t.VActive
	}
	return p
}

// PolarityFor returns the override or the nibble derived from t.
func (c DisplayConfig) PolarityFor(t videomode.Timing) vop2.Polarity {
	if c.Output.Polarity != nil {
		return vop2.Polarity(*c.Output.Polarity)
	}
	return vop2.PolarityFromFlags(t.Flags)
}

// Timing converts the override into a mode.
func (tc TimingConfig) Timing() (videomode.Timing, error) {
	flags, err := videomode.ParseFlags(tc.Flags)
	if err != nil {
		return videomode.Timing{}, fmt.Errorf("timing.flags: %w", err)
	}
	return videomode.Timing{
		PixelClock:  tc.PixelClock,
		HActive:     tc.HActive,
		HFrontPorch: tc.HFrontPorch,
		HBackPorch:  tc.HBackPorch,
		HSyncLen:    tc.HSyncLen,
		VActive:     tc.VActive,
		VFrontPorch: tc.VFrontPorch,
		VBackPorch:  tc.VBackPorch,
		VSyncLen:    tc.VSyncLen,
		Flags:       flags,
	}, nil
}
