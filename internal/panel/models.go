package panel

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/smazurov/vop2ctl/internal/videomode"
)

// Model is everything needed to drive one panel type.
type Model struct {
	Name       string
	Compatible string
	DSI        DSIConfig
	Timing     videomode.Timing
	Power      PowerSequence
	Init       Sequence
	// Settle is waited after the init sequence, before video is expected.
	Settle time.Duration
}

// TH101MB31IG002 is the BOE 10.1" 800x1280 panel of the PineTab2.
var TH101MB31IG002 = Model{
	Name:       "th101mb31ig002",
	Compatible: "boe,th101mb31ig002-28a",
	DSI: DSIConfig{
		Lanes:  4,
		Format: FormatRGB888,
		Flags:  ModeVideo | ModeVideoBurst | ModeEOTPacket | ModeLPM,
	},
	Timing: videomode.Timing{
		PixelClock:  73500000,
		HActive:     800,
		HFrontPorch: 64,
		HBackPorch:  64,
		HSyncLen:    16,
		VActive:     1280,
		VFrontPorch: 2,
		VBackPorch:  12,
		VSyncLen:    4,
	},
	Power: PowerSequence{
		{Pin: PinEnable, Value: 1, Delay: 50 * time.Millisecond},
		{Pin: PinReset, Value: 0, Delay: 100 * time.Microsecond},
		{Pin: PinReset, Value: 1, Delay: 100 * time.Microsecond},
		{Pin: PinReset, Value: 0, Delay: 6 * time.Millisecond},
	},
	Init: Sequence{
		DCS(0xE0, 0xAB, 0xBA),
		DCS(0xE1, 0xBA, 0xAB),
		DCS(0xB1, 0x10, 0x01, 0x47, 0xFF),
		DCS(0xB2, 0x0C, 0x14, 0x04, 0x50, 0x50, 0x14),
		DCS(0xB3, 0x56, 0x53, 0x00),
		DCS(0xB4, 0x33, 0x30, 0x04),
		DCS(0xB6, 0xB0, 0x00, 0x00, 0x10, 0x00, 0x10, 0x00),
		DCS(0xB8, 0x05, 0x12, 0x29, 0x49, 0x48, 0x00, 0x00),
		DCS(0xB9, 0x7C, 0x65, 0x55, 0x49, 0x46, 0x36, 0x3B, 0x24, 0x3D, 0x3C, 0x3D, 0x5C, 0x4C,
			0x55, 0x47, 0x46, 0x39, 0x26, 0x06, 0x7C, 0x65, 0x55, 0x49, 0x46, 0x36, 0x3B, 0x24,
			0x3D, 0x3C, 0x3D, 0x5C, 0x4C, 0x55, 0x47, 0x46, 0x39, 0x26, 0x06),
		DCS(0xC0, 0xFF, 0x87, 0x12, 0x34, 0x44, 0x44, 0x44, 0x44, 0x98, 0x04, 0x98, 0x04, 0x0F,
			0x00, 0x00, 0xC1),
		DCS(0xC1, 0x54, 0x94, 0x02, 0x85, 0x9F, 0x00, 0x7F, 0x00, 0x54, 0x00),
		DCS(0xC2, 0x17, 0x09, 0x08, 0x89, 0x08, 0x11, 0x22, 0x20, 0x44, 0xFF, 0x18, 0x00),
		DCS(0xC3, 0x86, 0x46, 0x05, 0x05, 0x1C, 0x1C, 0x1D, 0x1D, 0x02, 0x1F, 0x1F, 0x1E, 0x1E,
			0x0F, 0x0F, 0x0D, 0x0D, 0x13, 0x13, 0x11, 0x11, 0x00),
		DCS(0xC4, 0x07, 0x07, 0x04, 0x04, 0x1C, 0x1C, 0x1D, 0x1D, 0x02, 0x1F, 0x1F, 0x1E, 0x1E,
			0x0E, 0x0E, 0x0C, 0x0C, 0x12, 0x12, 0x10, 0x10, 0x00),
		DCS(0xC6, 0x2A, 0x2A),
		DCS(0xC8, 0x21, 0x00, 0x31, 0x42, 0x34, 0x16),
		DCS(0xCA, 0xCB, 0x43),
		DCS(0xCD, 0x0E, 0x4B, 0x4B, 0x20, 0x19, 0x6B, 0x06, 0xB3),
		DCS(0xD2, 0xE3, 0x2B, 0x38, 0x00),
		DCS(0xD4, 0x00, 0x01, 0x00, 0x0E, 0x04, 0x44, 0x08, 0x10, 0x00, 0x00, 0x00),
		DCS(0xE6, 0x80, 0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF),
		DCS(0xF0, 0x12, 0x03, 0x20, 0x00, 0xFF),
		DCS(0xF3, 0x00),
		DCS(DCSExitSleepMode).Wait(120 * time.Millisecond),
		DCS(DCSSetDisplayOn),
	},
	Settle: 10 * time.Millisecond,
}

var models = []Model{TH101MB31IG002}

// Models lists the known panel names.
func Models() []string {
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	slices.Sort(names)
	return names
}

// Lookup finds a model by name or device tree compatible.
func Lookup(name string) (Model, error) {
	for _, m := range models {
		if strings.EqualFold(name, m.Name) || name == m.Compatible {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("unknown panel %q (known: %s)", name, strings.Join(Models(), ", "))
}
