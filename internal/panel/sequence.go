package panel

import (
	"errors"
	"fmt"
	"time"
)

// Command is one DCS write followed by a fixed delay.
type Command struct {
	Payload []byte
	Delay   time.Duration
}

// DCS builds a command from a command byte and its parameters.
func DCS(cmd byte, params ...byte) Command {
	return Command{Payload: append([]byte{cmd}, params...)}
}

// Wait returns a copy of c that sleeps d after the write.
func (c Command) Wait(d time.Duration) Command {
	c.Delay = d
	return c
}

// Sequence is an ordered command table.
type Sequence []Command

// Duration is the sum of the fixed delays.
func (s Sequence) Duration() time.Duration {
	var total time.Duration
	for _, c := range s {
		total += c.Delay
	}
	return total
}

// ErrEmptyCommand is returned for a command with no payload.
var ErrEmptyCommand = errors.New("empty DCS command")

// Error reports which command of a sequence failed.
type Error struct {
	Step    int
	Command byte
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("panel init step %d (cmd 0x%02x): %v", e.Step, e.Command, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Run writes every command of seq to host in order, sleeping each
// command's delay after it is accepted. It stops at the first failure.
// Delays are not shortened or skipped.
func Run(host DSIHost, seq Sequence, sleep func(time.Duration)) error {
	for i, c := range seq {
		if len(c.Payload) == 0 {
			return &Error{Step: i, Cause: ErrEmptyCommand}
		}
		if err := host.WriteDCS(c.Payload); err != nil {
			return &Error{Step: i, Command: c.Payload[0], Cause: err}
		}
		if c.Delay > 0 {
			sleep(c.Delay)
		}
	}
	return nil
}
