package vop2

import (
	"fmt"
	"strings"

	"github.com/smazurov/vop2ctl/internal/videomode"
)

// OutputMode is a physical display interface.
type OutputMode int

// Output interfaces known at the register level.
const (
	OutputMIPI OutputMode = iota
	OutputHDMI
	OutputLVDS
	OutputEDP
	OutputRGB
	OutputBT656
	OutputBT1120
)

var outputModeNames = map[OutputMode]string{
	OutputMIPI:   "mipi",
	OutputHDMI:   "hdmi",
	OutputLVDS:   "lvds",
	OutputEDP:    "edp",
	OutputRGB:    "rgb",
	OutputBT656:  "bt656",
	OutputBT1120: "bt1120",
}

func (m OutputMode) String() string {
	if name, ok := outputModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("output(%d)", int(m))
}

// OutputModes lists every interface in declaration order.
func OutputModes() []OutputMode {
	return []OutputMode{OutputMIPI, OutputHDMI, OutputLVDS, OutputEDP, OutputRGB, OutputBT656, OutputBT1120}
}

// ParseOutputMode accepts names like "mipi" or "HDMI".
func ParseOutputMode(s string) (OutputMode, error) {
	for m, name := range outputModeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, newError(ErrUnsupportedMode, fmt.Sprintf("unknown output interface %q", s), nil)
}

// MarshalText implements encoding.TextMarshaler.
func (m OutputMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *OutputMode) UnmarshalText(b []byte) error {
	parsed, err := ParseOutputMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// enableFields holds the out-enable bit of every interface.
var enableFields = map[OutputMode]Field{
	OutputMIPI:   FieldMIPIOutEn,
	OutputHDMI:   FieldHDMIOutEn,
	OutputLVDS:   FieldLVDSOutEn,
	OutputEDP:    FieldEDPOutEn,
	OutputRGB:    FieldRGBOutEn,
	OutputBT656:  FieldBT656OutEn,
	OutputBT1120: FieldBT1120OutEn,
}

// allOutEn covers every out-enable bit in DSP_EN.
var allOutEn = func() uint32 {
	var m uint32
	for _, f := range enableFields {
		m |= f.Mask()
	}
	return m
}()

// OutputSpec is where one interface lives in the system control block.
type OutputSpec struct {
	Mux      Field
	Enable   Field
	Polarity Field
}

// Variant is one member of the VOP2 family. An interface missing from
// Outputs is not wired on that part.
type Variant struct {
	Name    string
	Outputs map[OutputMode]OutputSpec
}

var rk356xOutputs = map[OutputMode]OutputSpec{
	OutputMIPI: {Mux: FieldMIPIInfaceMux, Enable: FieldMIPIOutEn, Polarity: FieldMIPIPol},
	OutputHDMI: {Mux: FieldHDMIInfaceMux, Enable: FieldHDMIOutEn, Polarity: FieldHDMIPol},
}

// Known variants.
var (
	RK3568 = Variant{Name: "rk3568", Outputs: rk356xOutputs}
	RK3566 = Variant{Name: "rk3566", Outputs: rk356xOutputs}
)

// ParseVariant accepts a SoC name or a "rockchip,<soc>-vop" compatible.
func ParseVariant(s string) (Variant, error) {
	name := strings.TrimSuffix(strings.TrimPrefix(strings.ToLower(s), "rockchip,"), "-vop")
	switch name {
	case RK3568.Name, "":
		return RK3568, nil
	case RK3566.Name:
		return RK3566, nil
	}
	return Variant{}, fmt.Errorf("unknown VOP2 variant %q", s)
}

// Supports reports whether mode is wired on this variant.
func (v Variant) Supports(mode OutputMode) bool {
	_, ok := v.Outputs[mode]
	return ok
}

// Supported lists the wired interfaces in declaration order.
func (v Variant) Supported() []OutputMode {
	var out []OutputMode
	for _, m := range OutputModes() {
		if v.Supports(m) {
			out = append(out, m)
		}
	}
	return out
}

func (v Variant) spec(mode OutputMode) (OutputSpec, error) {
	spec, ok := v.Outputs[mode]
	if !ok {
		return OutputSpec{}, newError(ErrUnsupportedMode,
			fmt.Sprintf("%s output is not wired on %s", mode, v.Name),
			map[string]any{"mode": mode.String(), "variant": v.Name})
	}
	return spec, nil
}

// Polarity is the 4-bit signal polarity nibble of an interface.
type Polarity uint32

// Polarity bits.
const (
	PolHSyncHigh  Polarity = 1 << 0
	PolVSyncHigh  Polarity = 1 << 1
	PolDENLow     Polarity = 1 << 2
	PolDCLKInvert Polarity = 1 << 3
)

// PolarityFromFlags derives the nibble from a mode's signal flags.
func PolarityFromFlags(f videomode.Flags) Polarity {
	var p Polarity
	if f&videomode.HSyncHigh != 0 {
		p |= PolHSyncHigh
	}
	if f&videomode.VSyncHigh != 0 {
		p |= PolVSyncHigh
	}
	if f&videomode.DELow != 0 {
		p |= PolDENLow
	}
	if f&videomode.PixDataNegedge != 0 {
		p |= PolDCLKInvert
	}
	return p
}

func (p Polarity) String() string {
	return fmt.Sprintf("%04b", uint32(p))
}

// Router writes the interface routing fields of the system control block.
// Every method validates before touching hardware, so a rejected call
// leaves the registers unchanged.
type Router struct {
	sys     Bank
	variant Variant
}

// NewRouter binds a router to the system control block of s.
func NewRouter(sys Bank, v Variant) *Router {
	return &Router{sys: sys, variant: v}
}

// Route selects which video port feeds mode.
func (r *Router) Route(mode OutputMode, port int) error {
	spec, err := r.variant.spec(mode)
	if err != nil {
		return err
	}
	if _, err := PostBlock(port); err != nil {
		return err
	}
	v, err := spec.Mux.Pack(uint32(port))
	if err != nil {
		return err
	}
	r.sys.Modify(SysDspEn, spec.Mux.Mask(), v)
	return nil
}

// Enable turns on mode and turns off every other interface in one write.
func (r *Router) Enable(mode OutputMode) error {
	spec, err := r.variant.spec(mode)
	if err != nil {
		return err
	}
	r.sys.Modify(SysDspEn, allOutEn, spec.Enable.Mask())
	return nil
}

// SetPolarity writes the polarity nibble of mode, leaving the nibbles of
// other interfaces alone.
func (r *Router) SetPolarity(mode OutputMode, pol Polarity) error {
	spec, err := r.variant.spec(mode)
	if err != nil {
		return err
	}
	v, err := spec.Polarity.Pack(uint32(pol))
	if err != nil {
		return err
	}
	r.sys.Modify(SysDspPol, spec.Polarity.Mask(), v)
	return nil
}

// RouteState is the decoded routing of one interface.
type RouteState struct {
	Mode     OutputMode `json:"mode"`
	Wired    bool       `json:"wired"`
	Port     int        `json:"port"`
	Enabled  bool       `json:"enabled"`
	Polarity Polarity   `json:"polarity"`
}

// State decodes the routing registers for every interface.
func (r *Router) State() []RouteState {
	en := r.sys.Read(SysDspEn)
	pol := r.sys.Read(SysDspPol)

	var out []RouteState
	for _, m := range OutputModes() {
		st := RouteState{Mode: m, Enabled: enableFields[m].Unpack(en) == 1}
		if spec, ok := r.variant.Outputs[m]; ok {
			st.Wired = true
			st.Port = int(spec.Mux.Unpack(en))
			st.Polarity = Polarity(spec.Polarity.Unpack(pol))
		}
		out = append(out, st)
	}
	return out
}
