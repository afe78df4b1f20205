// Package videomode describes display timings shared by panels and the
// display pipeline.
package videomode

import (
	"fmt"
	"strings"
)

// Flags carry signal polarity and scan properties of a mode.
type Flags uint32

// Mode flags.
const (
	HSyncHigh      Flags = 1 << 0
	VSyncHigh      Flags = 1 << 1
	DEHigh         Flags = 1 << 2
	PixDataNegedge Flags = 1 << 3
	Interlaced     Flags = 1 << 4
	DELow          Flags = 1 << 5
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{HSyncHigh, "hsync_high"},
	{VSyncHigh, "vsync_high"},
	{DEHigh, "de_high"},
	{DELow, "de_low"},
	{PixDataNegedge, "pixdata_negedge"},
	{Interlaced, "interlaced"},
}

// String joins the set flag names with "|".
func (f Flags) String() string {
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

// ParseFlags accepts names such as "hsync_high" as produced by String.
func ParseFlags(names []string) (Flags, error) {
	var f Flags
next:
	for _, n := range names {
		for _, fn := range flagNames {
			if strings.EqualFold(strings.TrimSpace(n), fn.name) {
				f |= fn.flag
				continue next
			}
		}
		return 0, fmt.Errorf("unknown mode flag %q", n)
	}
	if f&DEHigh != 0 && f&DELow != 0 {
		return 0, fmt.Errorf("de_high and de_low are exclusive")
	}
	return f, nil
}

// Timing is one fixed display mode.
type Timing struct {
	PixelClock  uint32 `toml:"pixel_clock" json:"pixel_clock"` // Hz
	HActive     uint32 `toml:"hactive" json:"hactive"`
	HFrontPorch uint32 `toml:"hfront_porch" json:"hfront_porch"`
	HBackPorch  uint32 `toml:"hback_porch" json:"hback_porch"`
	HSyncLen    uint32 `toml:"hsync_len" json:"hsync_len"`
	VActive     uint32 `toml:"vactive" json:"vactive"`
	VFrontPorch uint32 `toml:"vfront_porch" json:"vfront_porch"`
	VBackPorch  uint32 `toml:"vback_porch" json:"vback_porch"`
	VSyncLen    uint32 `toml:"vsync_len" json:"vsync_len"`
	Flags       Flags  `toml:"flags" json:"flags"`
}

// HTotal is the horizontal period in pixels.
func (t Timing) HTotal() uint32 {
	return t.HSyncLen + t.HBackPorch + t.HActive + t.HFrontPorch
}

// VTotal is the vertical period in lines.
func (t Timing) VTotal() uint32 {
	return t.VSyncLen + t.VBackPorch + t.VActive + t.VFrontPorch
}

// RefreshHz returns the frame rate implied by the pixel clock.
func (t Timing) RefreshHz() float64 {
	total := uint64(t.HTotal()) * uint64(t.VTotal())
	if total == 0 {
		return 0
	}
	return float64(t.PixelClock) / float64(total)
}

// Validate rejects timings the pipeline cannot express at all.
func (t Timing) Validate() error {
	if t.HActive == 0 || t.VActive == 0 {
		return fmt.Errorf("active area %dx%d is empty", t.HActive, t.VActive)
	}
	if t.HSyncLen == 0 || t.VSyncLen == 0 {
		return fmt.Errorf("sync pulse width must be non-zero (h=%d v=%d)", t.HSyncLen, t.VSyncLen)
	}
	return nil
}

// String formats the mode like "800x1280@60.00".
func (t Timing) String() string {
	return fmt.Sprintf("%dx%d@%.2f", t.HActive, t.VActive, t.RefreshHz())
}
