package led

// Controller drives the status LEDs of the board.
type Controller interface {
	// Set switches ledType on or off. A non-empty pattern ("solid",
	// "blink", "heartbeat" or a raw kernel trigger) is applied first.
	Set(ledType string, enabled bool, pattern string) error

	// Available lists the LED names this board exposes.
	Available() []string

	// Patterns lists the accepted pattern names.
	Patterns() []string
}
