package panel

import (
	"fmt"
	"time"
)

// Pin is a panel control line.
type Pin int

// Panel control lines.
const (
	PinEnable Pin = iota
	PinReset
)

func (p Pin) String() string {
	switch p {
	case PinEnable:
		return "enable"
	case PinReset:
		return "reset"
	default:
		return fmt.Sprintf("pin(%d)", int(p))
	}
}

// PowerStep drives one pin and then waits.
type PowerStep struct {
	Pin   Pin
	Value int
	Delay time.Duration
}

// PowerSequence is the ordered pin program run before the init sequence.
type PowerSequence []PowerStep

// Pins drives panel control lines.
type Pins interface {
	Set(pin Pin, value int) error
	Close() error
}

// PowerOn runs seq against pins with fixed delays.
func PowerOn(pins Pins, seq PowerSequence, sleep func(time.Duration)) error {
	for i, step := range seq {
		if err := pins.Set(step.Pin, step.Value); err != nil {
			return fmt.Errorf("power step %d (%s=%d): %w", i, step.Pin, step.Value, err)
		}
		if step.Delay > 0 {
			sleep(step.Delay)
		}
	}
	return nil
}
