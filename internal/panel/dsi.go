package panel

import (
	"fmt"
	"strings"
)

// PixelFormat is the DSI video stream format.
type PixelFormat int

// DSI pixel formats.
const (
	FormatRGB888 PixelFormat = iota
	FormatRGB666
	FormatRGB666Packed
	FormatRGB565
)

func (f PixelFormat) String() string {
	switch f {
	case FormatRGB888:
		return "rgb888"
	case FormatRGB666:
		return "rgb666"
	case FormatRGB666Packed:
		return "rgb666_packed"
	case FormatRGB565:
		return "rgb565"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// BitsPerPixel on the link.
func (f PixelFormat) BitsPerPixel() int {
	switch f {
	case FormatRGB666Packed:
		return 18
	case FormatRGB565:
		return 16
	default:
		return 24
	}
}

// ModeFlags select DSI link behaviour.
type ModeFlags uint32

// Mode flags.
const (
	ModeVideo ModeFlags = 1 << iota
	ModeVideoBurst
	ModeVideoSyncPulse
	ModeEOTPacket
	ModeLPM
)

func (m ModeFlags) String() string {
	names := []struct {
		flag ModeFlags
		name string
	}{
		{ModeVideo, "video"},
		{ModeVideoBurst, "burst"},
		{ModeVideoSyncPulse, "sync_pulse"},
		{ModeEOTPacket, "eot"},
		{ModeLPM, "lpm"},
	}
	var parts []string
	for _, n := range names {
		if m&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// DSIConfig is what the panel asks of the DSI host.
type DSIConfig struct {
	Lanes  int         `json:"lanes"`
	Format PixelFormat `json:"format"`
	Flags  ModeFlags   `json:"flags"`
}

func (c DSIConfig) String() string {
	return fmt.Sprintf("%d lanes %s %s", c.Lanes, c.Format, c.Flags)
}

// DCS data types.
const (
	DCSShortWrite      byte = 0x05
	DCSShortWriteParam byte = 0x15
	DCSLongWrite       byte = 0x39
)

// DCS commands used by every panel.
const (
	DCSExitSleepMode byte = 0x11
	DCSSetDisplayOn  byte = 0x29
)

// DataType picks the DSI packet type for a DCS payload.
func DataType(payload []byte) byte {
	switch len(payload) {
	case 1:
		return DCSShortWrite
	case 2:
		return DCSShortWriteParam
	default:
		return DCSLongWrite
	}
}

// DSIHost transmits to a panel.
type DSIHost interface {
	Attach(cfg DSIConfig) error
	WriteDCS(payload []byte) error
}
