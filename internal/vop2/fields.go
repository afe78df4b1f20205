package vop2

import (
	"fmt"
	"strings"
)

// Field is a bitfield inside a 32-bit register: Width bits starting at Shift.
type Field struct {
	Name  string
	Width uint
	Shift uint
}

// Max is the largest value the field can hold.
func (f Field) Max() uint32 {
	return uint32((uint64(1) << f.Width) - 1)
}

// Mask is the field's bits in register position.
func (f Field) Mask() uint32 {
	return f.Max() << f.Shift
}

// Pack places v into register position. Values wider than the field are
// rejected, never truncated.
func (f Field) Pack(v uint32) (uint32, error) {
	if v > f.Max() {
		return 0, newError(ErrValueTooWide,
			fmt.Sprintf("%s: value %d (0x%x) does not fit in %d bits", f.name(), v, v, f.Width),
			map[string]any{"field": f.name(), "value": v, "width": f.Width})
	}
	return v << f.Shift, nil
}

// Unpack extracts the field from a register word.
func (f Field) Unpack(reg uint32) uint32 {
	return (reg >> f.Shift) & f.Max()
}

// With pairs the field with a value for PackAll.
func (f Field) With(v uint32) FieldValue {
	return FieldValue{Field: f, Value: v}
}

func (f Field) name() string {
	if f.Name == "" {
		return fmt.Sprintf("field[%d:%d]", f.Shift+f.Width-1, f.Shift)
	}
	return f.Name
}

// FieldValue is one semantic quantity bound to its bitfield.
type FieldValue struct {
	Field Field
	Value uint32
}

// PackAll packs several fields of the same register into one word and
// returns the union of their masks. Any value that does not fit fails the
// whole word so a partial register is never produced.
func PackAll(values ...FieldValue) (word, mask uint32, err error) {
	for _, fv := range values {
		packed, packErr := fv.Field.Pack(fv.Value)
		if packErr != nil {
			return 0, 0, packErr
		}
		word |= packed
		mask |= fv.Field.Mask()
	}
	return word, mask, nil
}

// Pack is the anonymous form of Field.Pack.
func Pack(value uint32, width, shift uint) (uint32, error) {
	return Field{Width: width, Shift: shift}.Pack(value)
}

// Unpack is the anonymous form of Field.Unpack.
func Unpack(reg uint32, width, shift uint) uint32 {
	return Field{Width: width, Shift: shift}.Unpack(reg)
}

// flag is a one-bit field.
func flag(name string, bit uint) Field {
	return Field{Name: name, Width: 1, Shift: bit}
}

// System control fields.
var (
	FieldFPGAVersion = Field{Name: "fpga_version", Width: 16, Shift: 16}
	FieldRTLVersion  = Field{Name: "rtl_version", Width: 16, Shift: 0}

	FieldAutoGating  = flag("auto_gating", 31)
	FieldPwmclkAclk  = flag("pwmclk_aclk", 12)
	FieldOverlayAclk = flag("overlay_aclk", 8)
	FieldSmart1Aclk  = flag("smart1_aclk", 7)
	FieldSmart0Aclk  = flag("smart0_aclk", 6)
	FieldEsmart1Aclk = flag("esmart1_aclk", 5)
	FieldEsmart0Aclk = flag("esmart0_aclk", 4)

	FieldDspInfaceRegDone = flag("dsp_inface_regdone", 28)
	FieldOTPWin           = flag("otp_win", 0)

	FieldMIPIInfaceMux = Field{Name: "mipi_inface_mux", Width: 2, Shift: 16}
	FieldHDMIInfaceMux = Field{Name: "hdmi_inface_mux", Width: 2, Shift: 10}

	FieldMIPIPol = Field{Name: "mipi_pol", Width: 4, Shift: 16}
	FieldEDPPol  = Field{Name: "edp_pol", Width: 4, Shift: 12}
	FieldHDMIPol = Field{Name: "hdmi_pol", Width: 4, Shift: 4}
	FieldLVDSPol = Field{Name: "lvds_pol", Width: 4, Shift: 0}

	FieldBT656OutEn  = flag("bt656_out_en", 7)
	FieldBT1120OutEn = flag("bt1120_out_en", 6)
	FieldLVDSOutEn   = flag("lvds_out_en", 5)
	FieldMIPIOutEn   = flag("mipi_out_en", 4)
	FieldEDPOutEn    = flag("edp_out_en", 3)
	FieldHDMIOutEn   = flag("hdmi_out_en", 1)
	FieldRGBOutEn    = flag("rgb_out_en", 0)
)

// Overlay fields.
var (
	FieldLayerSelRegDoneSel = Field{Name: "layer_sel_regdone_sel", Width: 2, Shift: 30}
	FieldLayerSelRegDoneEn  = flag("layer_sel_regdone_en", 28)
	FieldLayer0Sel          = Field{Name: "layer0_sel", Width: 3, Shift: 0}
)

// FieldVPOverlayMode is the overlay mode bit of a video port.
func FieldVPOverlayMode(port int) Field {
	return flag(fmt.Sprintf("vp%d_overlay_mode", port), uint(port))
}

// FieldEsmartSelPort is the port select of an Esmart plane in PORT_SEL.
func FieldEsmartSelPort(plane int) Field {
	return Field{Name: fmt.Sprintf("esmart%d_sel_port", plane), Width: 2, Shift: 24 + 2*uint(plane)}
}

// Post-processing fields.
var (
	FieldPostStandby   = flag("post_standby", 31)
	FieldPostFPStandby = flag("post_fp_standby", 30)
	FieldPostBlack     = flag("post_black", 27)
	FieldPostOutZero   = flag("post_out_zero", 26)
	FieldDspOutMode    = Field{Name: "dsp_out_mode", Width: 4, Shift: 0}

	FieldColorBarMode = flag("post_colorbar_mode", 1)
	FieldColorBarEn   = flag("post_colorbar_en", 0)

	FieldBgRed   = Field{Name: "dsp_bg_red", Width: 6, Shift: 20}
	FieldBgGreen = Field{Name: "dsp_bg_green", Width: 6, Shift: 10}
	FieldBgBlue  = Field{Name: "dsp_bg_blue", Width: 6, Shift: 0}

	FieldHSync  = Field{Name: "hsync", Width: 13, Shift: 0}   // hsync pulse width
	FieldHorPrd = Field{Name: "horprd", Width: 13, Shift: 16} // horizontal period
	FieldVSync  = Field{Name: "vsync", Width: 13, Shift: 0}
	FieldVerPrd = Field{Name: "verprd", Width: 13, Shift: 16}
	FieldHAEP   = Field{Name: "hact_end", Width: 13, Shift: 0}
	FieldHASP   = Field{Name: "hact_st", Width: 13, Shift: 16}
	FieldVAEP   = Field{Name: "vact_end", Width: 13, Shift: 0}
	FieldVASP   = Field{Name: "vact_st", Width: 13, Shift: 16}
)

// Esmart plane fields.
var (
	FieldRegion0MstEn   = flag("region0_mst_en", 0)
	FieldRegion0DataFmt = Field{Name: "region0_data_fmt", Width: 5, Shift: 1}

	FieldVirWidth  = Field{Name: "vir_width", Width: 14, Shift: 0}
	FieldActWidth  = Field{Name: "act_width", Width: 13, Shift: 0}
	FieldActHeight = Field{Name: "act_height", Width: 13, Shift: 16}
	FieldDspWidth  = Field{Name: "dsp_width", Width: 13, Shift: 0}
	FieldDspHeight = Field{Name: "dsp_height", Width: 13, Shift: 16}
	FieldDspXst    = Field{Name: "dsp_xst", Width: 13, Shift: 0}
	FieldDspYst    = Field{Name: "dsp_yst", Width: 13, Shift: 16}

	FieldSclFactorX = Field{Name: "scl_factor_x", Width: 16, Shift: 0}
	FieldSclFactorY = Field{Name: "scl_factor_y", Width: 16, Shift: 16}
)

// PixelFormat is the memory layout of a plane's framebuffer.
type PixelFormat int

// Supported pixel formats.
const (
	FormatARGB8888 PixelFormat = iota
	FormatRGB888
	FormatRGB565
	FormatYUV420 // planar luma, stride counted on the Y plane
)

var pixelFormatNames = map[PixelFormat]string{
	FormatARGB8888: "argb8888",
	FormatRGB888:   "rgb888",
	FormatRGB565:   "rgb565",
	FormatYUV420:   "yuv420",
}

func (f PixelFormat) String() string {
	if name, ok := pixelFormatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParsePixelFormat accepts the names produced by PixelFormat.String.
func ParsePixelFormat(s string) (PixelFormat, error) {
	for f, name := range pixelFormatNames {
		if strings.EqualFold(s, name) {
			return f, nil
		}
	}
	return 0, newError(ErrUnsupportedMode, fmt.Sprintf("unknown pixel format %q", s), nil)
}

// MarshalText implements encoding.TextMarshaler.
func (f PixelFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *PixelFormat) UnmarshalText(b []byte) error {
	parsed, err := ParsePixelFormat(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// BitsPerPixel of the format as stored in memory.
func (f PixelFormat) BitsPerPixel() int {
	switch f {
	case FormatARGB8888:
		return 32
	case FormatRGB888:
		return 24
	case FormatRGB565:
		return 16
	default:
		return 12
	}
}

// dataFormat is the region0 data format code understood by the plane.
func (f PixelFormat) dataFormat() uint32 {
	switch f {
	case FormatRGB888:
		return 1
	case FormatRGB565:
		return 2
	case FormatYUV420:
		return 4
	default:
		return 0
	}
}

// VirtualStride converts a line width in pixels into the fetch stride the
// plane expects. The RGB888 rule is the hardware's, including its rounding:
// floor(3w/4) + w mod 3.
func VirtualStride(width uint32, format PixelFormat) (uint32, error) {
	w := uint64(width)
	var stride uint64
	switch format {
	case FormatARGB8888:
		stride = w
	case FormatRGB888:
		stride = (w*3)>>2 + w%3
	case FormatRGB565:
		stride = w / 2
	case FormatYUV420:
		stride = w / 4
	default:
		return 0, newError(ErrUnsupportedMode, fmt.Sprintf("no stride rule for %s", format), nil)
	}
	if stride > uint64(FieldVirWidth.Max()) {
		return 0, newError(ErrValueTooWide,
			fmt.Sprintf("virtual stride %d for %d px %s exceeds %d bits", stride, width, format, FieldVirWidth.Width),
			map[string]any{"width": width, "format": format.String(), "stride": stride})
	}
	return uint32(stride), nil
}

const scaleFractionBits = 12

// ScaleFactor is the 4.12 fixed point source/destination ratio of one axis.
// 1:1 is 0x1000.
func ScaleFactor(src, dst uint32) (uint32, error) {
	if src == 0 || dst == 0 {
		return 0, newError(ErrInvalidGeometry, fmt.Sprintf("cannot scale %d to %d", src, dst), nil)
	}
	fac := (uint64(src) << scaleFractionBits) / uint64(dst)
	if fac > uint64(FieldSclFactorX.Max()) {
		return 0, newError(ErrValueTooWide,
			fmt.Sprintf("scale factor %d:%d exceeds the plane's downscale range", src, dst),
			map[string]any{"src": src, "dst": dst})
	}
	return uint32(fac), nil
}
