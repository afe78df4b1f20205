//go:build linux

package panel

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOConfig names the character device lines wired to the panel. A
// negative offset means the line is not connected.
type GPIOConfig struct {
	Chip   string `toml:"chip" json:"chip"`
	Enable int    `toml:"enable" json:"enable"`
	Reset  int    `toml:"reset" json:"reset"`
}

// GPIOPins drives panel lines through the GPIO character device.
type GPIOPins struct {
	lines map[Pin]*gpiocdev.Line
}

// OpenGPIO requests the configured lines as outputs driven low.
func OpenGPIO(cfg GPIOConfig) (*GPIOPins, error) {
	p := &GPIOPins{lines: make(map[Pin]*gpiocdev.Line)}
	for pin, offset := range map[Pin]int{PinEnable: cfg.Enable, PinReset: cfg.Reset} {
		if offset < 0 {
			continue
		}
		l, err := gpiocdev.RequestLine(cfg.Chip, offset,
			gpiocdev.AsOutput(0),
			gpiocdev.WithConsumer("vop2ctl-panel"))
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("request %s line %s:%d: %w", pin, cfg.Chip, offset, err)
		}
		p.lines[pin] = l
	}
	return p, nil
}

// Set drives a line. Unconnected lines are ignored.
func (p *GPIOPins) Set(pin Pin, value int) error {
	l, ok := p.lines[pin]
	if !ok {
		return nil
	}
	return l.SetValue(value)
}

// Close releases every requested line.
func (p *GPIOPins) Close() error {
	var errs []error
	for pin, l := range p.lines {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", pin, err))
		}
		delete(p.lines, pin)
	}
	return errors.Join(errs...)
}
