package vop2

import (
	"context"
	"fmt"
	"time"

	"github.com/smazurov/vop2ctl/internal/logging"
	"github.com/smazurov/vop2ctl/internal/mmio"
	"github.com/smazurov/vop2ctl/internal/videomode"
)

// DefaultSettleDelay is the fixed wait after the block leaves reset.
const DefaultSettleDelay = 10 * time.Millisecond

// Layer select ids of the Esmart planes in OVERLAY_LAYER_SEL.
var esmartLayerID = [NumEsmart]uint32{2, 6}

// Observer receives register traffic and commit activity. Metrics and
// events attach here.
type Observer interface {
	RegisterAccess(op string, block Block)
	CommitRequested(bits CommitBits, blocks []Block)
	CommitLatched(blocks []Block, elapsed time.Duration)
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver logger.
func WithLogger(l logging.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithVariant selects the family member. The default is RK3568.
func WithVariant(v Variant) Option {
	return func(d *Driver) { d.variant = v }
}

// WithSleep replaces time.Sleep for the fixed settle delays.
func WithSleep(sleep func(time.Duration)) Option {
	return func(d *Driver) { d.sleep = sleep }
}

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(delay time.Duration) Option {
	return func(d *Driver) { d.settle = delay }
}

// WithObserver attaches an observer.
func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observer = o }
}

// WithPollInterval sets how often WaitCommit samples the interrupt status.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Driver) { d.poll = interval }
}

// Driver is the handle to one mapped VOP2 instance. It is built once at
// bring-up and passed to whoever configures the display. A Driver is not
// safe for concurrent use: read-modify-write sequences are unlocked, so the
// caller guarantees a single owner.
type Driver struct {
	surface  mmio.Surface
	variant  Variant
	logger   logging.Logger
	sleep    func(time.Duration)
	settle   time.Duration
	poll     time.Duration
	observer Observer

	sys      Bank
	overlay  Bank
	router   *Router
	protocol *Protocol
	ready    bool
	version  uint32
}

// New creates a driver over a register surface that starts at the VOP2
// base address. Probe must succeed before any configuration call.
func New(s mmio.Surface, opts ...Option) *Driver {
	d := &Driver{
		surface: s,
		variant: RK3568,
		sleep:   time.Sleep,
		settle:  DefaultSettleDelay,
		poll:    time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.GetLogger("vop2")
	}
	if d.observer != nil {
		d.surface = &observedSurface{Surface: s, observer: d.observer}
	}

	d.sys = NewBank(d.surface, SysCtrlBlock())
	d.overlay = NewBank(d.surface, OverlayBlock())
	d.router = NewRouter(d.sys, d.variant)
	d.protocol = NewProtocol(d.surface)
	d.protocol.interval = d.poll
	if d.observer != nil {
		d.protocol.onRequested = d.observer.CommitRequested
		d.protocol.onLatched = d.observer.CommitLatched
	}
	return d
}

// Probe checks that the block answers, waits the post-reset settle time,
// disables clock auto-gating and enables the OTP window.
func (d *Driver) Probe() error {
	v := d.sys.Read(SysVersionInfo)
	if v == 0 || v == 0xffffffff {
		return newError(ErrHardwareNotReady,
			fmt.Sprintf("version register reads 0x%08x, block is not clocked or out of reset", v),
			map[string]any{"version": v})
	}
	d.version = v
	d.sleep(d.settle)

	d.sys.Modify(SysAutogatingCtrl, FieldAutoGating.Mask(), 0)
	d.sys.Modify(SysOtpWin, FieldOTPWin.Mask(), FieldOTPWin.Mask())
	d.protocol.Stage(SysCtrlBlock())

	d.ready = true
	d.logger.Info("VOP2 probed",
		"variant", d.variant.Name,
		"version", fmt.Sprintf("0x%08x", v),
		"fpga", FieldFPGAVersion.Unpack(v),
		"rtl", FieldRTLVersion.Unpack(v))
	return nil
}

// Ready reports whether Probe has succeeded.
func (d *Driver) Ready() bool { return d.ready }

// Version returns VERSION_INFO as read by Probe.
func (d *Driver) Version() uint32 { return d.version }

// Variant returns the configured family member.
func (d *Driver) Variant() Variant { return d.variant }

func (d *Driver) requireReady(op string) error {
	if !d.ready {
		return newError(ErrHardwareNotReady, op+": device has not been probed", nil)
	}
	return nil
}

// SetOutput routes a video port to an output interface.
func (d *Driver) SetOutput(mode OutputMode, port int) error {
	if err := d.requireReady("set_output"); err != nil {
		return err
	}
	if err := d.router.Route(mode, port); err != nil {
		return err
	}
	d.protocol.Stage(SysCtrlBlock())
	d.logger.Debug("Output routed", "mode", mode, "port", port)
	return nil
}

// EnableOutput enables one interface and disables all others.
func (d *Driver) EnableOutput(mode OutputMode) error {
	if err := d.requireReady("enable_output"); err != nil {
		return err
	}
	if err := d.router.Enable(mode); err != nil {
		return err
	}
	d.protocol.Stage(SysCtrlBlock())
	d.logger.Debug("Output enabled", "mode", mode)
	return nil
}

// SetPinPolarity writes the polarity nibble of an interface.
func (d *Driver) SetPinPolarity(mode OutputMode, pol Polarity) error {
	if err := d.requireReady("set_pin_polarity"); err != nil {
		return err
	}
	if err := d.router.SetPolarity(mode, pol); err != nil {
		return err
	}
	d.protocol.Stage(SysCtrlBlock())
	d.logger.Debug("Polarity set", "mode", mode, "polarity", pol)
	return nil
}

// Routes decodes the current routing of every interface.
func (d *Driver) Routes() []RouteState {
	return d.router.State()
}

// PlaneConfig describes the framebuffer scanned out by an Esmart plane.
// Zero display dimensions mean "same as the source".
type PlaneConfig struct {
	Port        int
	Format      PixelFormat
	Width       uint32
	Height      uint32
	DspX        uint32
	DspY        uint32
	DspWidth    uint32
	DspHeight   uint32
	Framebuffer uint64
}

// ConfigurePlane programs an Esmart plane and attaches it to a port. Every
// value is packed before the first write, so a rejected config leaves the
// plane untouched.
//
// One plane is scanned out at a time: the plane always takes layer 0 of
// the overlay, replacing whichever plane held it before.
func (d *Driver) ConfigurePlane(plane int, cfg PlaneConfig) error {
	if err := d.requireReady("configure_plane"); err != nil {
		return err
	}
	eb, err := EsmartBlock(plane)
	if err != nil {
		return err
	}
	if _, err := PostBlock(cfg.Port); err != nil {
		return err
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return newError(ErrInvalidGeometry,
			fmt.Sprintf("plane %d: source %dx%d is empty", plane, cfg.Width, cfg.Height), nil)
	}
	if cfg.DspWidth == 0 {
		cfg.DspWidth = cfg.Width
	}
	if cfg.DspHeight == 0 {
		cfg.DspHeight = cfg.Height
	}
	if cfg.Framebuffer > 0xffffffff {
		return newError(ErrValueTooWide,
			fmt.Sprintf("framebuffer 0x%x is above the 32-bit DMA window", cfg.Framebuffer), nil)
	}

	stride, err := VirtualStride(cfg.Width, cfg.Format)
	if err != nil {
		return err
	}
	ctl, ctlMask, err := PackAll(FieldRegion0MstEn.With(1), FieldRegion0DataFmt.With(cfg.Format.dataFormat()))
	if err != nil {
		return err
	}
	act, _, err := PackAll(FieldActWidth.With(cfg.Width-1), FieldActHeight.With(cfg.Height-1))
	if err != nil {
		return err
	}
	dsp, _, err := PackAll(FieldDspWidth.With(cfg.DspWidth-1), FieldDspHeight.With(cfg.DspHeight-1))
	if err != nil {
		return err
	}
	off, _, err := PackAll(FieldDspXst.With(cfg.DspX), FieldDspYst.With(cfg.DspY))
	if err != nil {
		return err
	}
	sx, err := ScaleFactor(cfg.Width, cfg.DspWidth)
	if err != nil {
		return err
	}
	sy, err := ScaleFactor(cfg.Height, cfg.DspHeight)
	if err != nil {
		return err
	}
	scl, _, err := PackAll(FieldSclFactorX.With(sx), FieldSclFactorY.With(sy))
	if err != nil {
		return err
	}
	layer, layerMask, err := PackAll(FieldLayer0Sel.With(esmartLayerID[plane]))
	if err != nil {
		return err
	}
	selField := FieldEsmartSelPort(plane)
	sel, err := selField.Pack(uint32(cfg.Port))
	if err != nil {
		return err
	}

	bank := NewBank(d.surface, eb)
	bank.Write(EsmartRegion0Vir, stride)
	bank.Write(EsmartRegion0ActInfo, act)
	bank.Write(EsmartRegion0DspInfo, dsp)
	bank.Write(EsmartRegion0DspOffset, off)
	bank.Write(EsmartRegion0SclFactorYrgb, scl)
	bank.Write(EsmartRegion0MstYrgb, uint32(cfg.Framebuffer))
	bank.Modify(EsmartRegion0MstCtl, ctlMask, ctl)
	d.protocol.Stage(eb)

	d.overlay.Modify(OvlLayerSel, layerMask, layer)
	d.overlay.Modify(OvlPortSel, selField.Mask(), sel)
	d.protocol.Stage(OverlayBlock())

	d.logger.Debug("Plane configured",
		"plane", eb.String(),
		"port", cfg.Port,
		"format", cfg.Format,
		"src", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"dst", fmt.Sprintf("%dx%d+%d+%d", cfg.DspWidth, cfg.DspHeight, cfg.DspX, cfg.DspY),
		"stride", stride,
		"fb", fmt.Sprintf("0x%08x", cfg.Framebuffer))
	return nil
}

// SetTiming programs the timing generator of a port and takes its post
// block out of standby with RGB888 parallel output.
func (d *Driver) SetTiming(port int, t videomode.Timing) error {
	if err := d.requireReady("set_timing"); err != nil {
		return err
	}
	pb, err := PostBlock(port)
	if err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return &Error{Code: ErrInvalidGeometry, Message: fmt.Sprintf("port %d timing", port), Cause: err}
	}
	if t.Flags&videomode.Interlaced != 0 {
		return newError(ErrInvalidGeometry, "interlaced modes are not supported", nil)
	}

	hStart := t.HSyncLen + t.HBackPorch
	vStart := t.VSyncLen + t.VBackPorch

	htotal, _, err := PackAll(FieldHSync.With(t.HSyncLen), FieldHorPrd.With(t.HTotal()))
	if err != nil {
		return err
	}
	hact, _, err := PackAll(FieldHAEP.With(hStart+t.HActive), FieldHASP.With(hStart))
	if err != nil {
		return err
	}
	vtotal, _, err := PackAll(FieldVSync.With(t.VSyncLen), FieldVerPrd.With(t.VTotal()))
	if err != nil {
		return err
	}
	vact, _, err := PackAll(FieldVAEP.With(vStart+t.VActive), FieldVASP.With(vStart))
	if err != nil {
		return err
	}
	unity, _, err := PackAll(FieldSclFactorX.With(unityScale), FieldSclFactorY.With(unityScale))
	if err != nil {
		return err
	}

	bank := NewBank(d.surface, pb)
	bank.Write(PostDspHtotalHsEnd, htotal)
	bank.Write(PostDspHactStEnd, hact)
	bank.Write(PostDspVtotalVsEnd, vtotal)
	bank.Write(PostDspVactStEnd, vact)
	bank.Write(PostDspHactInfo, hact)
	bank.Write(PostDspVactInfo, vact)
	bank.Write(PostSclFactorYrgb, unity)
	bank.Modify(PostDspCtrl,
		FieldPostStandby.Mask()|FieldPostFPStandby.Mask()|FieldPostBlack.Mask()|FieldPostOutZero.Mask()|FieldDspOutMode.Mask(),
		dspOutModeP888)
	d.protocol.Stage(pb)

	d.logger.Debug("Timing set",
		"port", port,
		"mode", t.String(),
		"htotal", t.HTotal(),
		"vtotal", t.VTotal(),
		"pixel_clock", t.PixelClock)
	return nil
}

// SetBackground sets the colour shown where no plane covers the screen.
// Components are 6 bits each.
func (d *Driver) SetBackground(port int, r, g, b uint32) error {
	if err := d.requireReady("set_background"); err != nil {
		return err
	}
	pb, err := PostBlock(port)
	if err != nil {
		return err
	}
	bg, _, err := PackAll(FieldBgRed.With(r), FieldBgGreen.With(g), FieldBgBlue.With(b))
	if err != nil {
		return err
	}
	NewBank(d.surface, pb).Write(PostDspBg, bg)
	d.protocol.Stage(pb)
	return nil
}

// SetColorBar switches the built-in test pattern of a port.
func (d *Driver) SetColorBar(port int, on bool) error {
	if err := d.requireReady("set_color_bar"); err != nil {
		return err
	}
	pb, err := PostBlock(port)
	if err != nil {
		return err
	}
	var v uint32
	if on {
		v = FieldColorBarEn.Mask()
	}
	NewBank(d.surface, pb).Modify(PostColorCtrl, FieldColorBarEn.Mask()|FieldColorBarMode.Mask(), v)
	d.protocol.Stage(pb)
	return nil
}

// Commit asserts the commit bits of every staged block in one write and
// returns them. Nothing is written when nothing is staged.
func (d *Driver) Commit() (CommitBits, error) {
	if err := d.requireReady("commit"); err != nil {
		return 0, err
	}
	staged := d.protocol.Staged()
	bits := d.protocol.Commit()
	if bits != 0 {
		d.logger.Debug("Commit requested", "bits", bits, "blocks", blockNames(staged))
	}
	return bits, nil
}

// Request asserts exactly bits. Blocks whose bits are not all asserted
// stay staged.
func (d *Driver) Request(bits CommitBits) ([]Block, error) {
	if err := d.requireReady("request"); err != nil {
		return nil, err
	}
	if bits&^allCommitBits != 0 {
		return nil, newError(ErrValueTooWide, fmt.Sprintf("unknown commit bits 0x%x", uint32(bits&^allCommitBits)), nil)
	}
	return d.protocol.Request(bits), nil
}

// Submit applies an explicit batch of writes and asserts its commit bits.
func (d *Driver) Submit(req CommitRequest) (CommitBits, error) {
	if err := d.requireReady("submit"); err != nil {
		return 0, err
	}
	return d.protocol.Submit(req)
}

// WaitCommit blocks until every requested block has latched, ticking on
// the frame start interrupt of port.
func (d *Driver) WaitCommit(ctx context.Context, port int) error {
	if err := d.requireReady("wait_commit"); err != nil {
		return err
	}
	return d.protocol.Wait(ctx, port)
}

// Sync refreshes block phases from REG_CFG_DONE without waiting.
func (d *Driver) Sync() []Block {
	return d.protocol.Sync()
}

// Phase reports where a block is in the commit cycle.
func (d *Driver) Phase(b Block) Phase {
	return d.protocol.Phase(b)
}

// Snapshot reads every register of a block.
func (d *Driver) Snapshot(b Block) ([]uint32, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return NewBank(d.surface, b).Dump(), nil
}

// Read reads one register of a block.
func (d *Driver) Read(b Block, r Reg) (uint32, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	if uint32(r) >= b.Size() || r%4 != 0 {
		return 0, newError(ErrOutOfRange, fmt.Sprintf("register 0x%02x is outside %s", uint32(r), b), nil)
	}
	return NewBank(d.surface, b).Read(r), nil
}

const (
	unityScale     = 1 << scaleFractionBits
	dspOutModeP888 = 0
)

// observedSurface reports every access to the observer.
type observedSurface struct {
	mmio.Surface
	observer Observer
}

func (s *observedSurface) Read32(off uint32) uint32 {
	s.observer.RegisterAccess("read", blockAt(off))
	return s.Surface.Read32(off)
}

func (s *observedSurface) Write32(off, v uint32) {
	s.observer.RegisterAccess("write", blockAt(off))
	s.Surface.Write32(off, v)
}

// blockAt maps a window offset to its block. Offsets outside every known
// layout map to the system control block.
func blockAt(off uint32) Block {
	for _, b := range Blocks() {
		if b.Contains(off) {
			return b
		}
	}
	return SysCtrlBlock()
}
