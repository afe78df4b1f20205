//go:build !linux

package panel

import "errors"

// GPIOConfig names the character device lines wired to the panel.
type GPIOConfig struct {
	Chip   string `toml:"chip" json:"chip"`
	Enable int    `toml:"enable" json:"enable"`
	Reset  int    `toml:"reset" json:"reset"`
}

// GPIOPins is unavailable off Linux.
type GPIOPins struct{}

// OpenGPIO always fails off Linux.
func OpenGPIO(GPIOConfig) (*GPIOPins, error) {
	return nil, errors.New("gpio character device requires linux")
}

// Set implements Pins.
func (p *GPIOPins) Set(Pin, int) error { return nil }

// Close implements Pins.
func (p *GPIOPins) Close() error { return nil }
