// Package gpio drives digital pins with hardware abstraction.
// The default implementation uses the Linux sysfs GPIO interface; a character
// device implementation is available on Linux. The fake implementation allows
// testing without hardware.
package gpio

import "fmt"

// Direction is the configured direction of a pin.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Level is the binary value of a pin.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

func (l Level) String() string {
	if l == High {
		return "HIGH"
	}
	return "LOW"
}

// Chip exposes pin operations. Each call is synchronous and may fail with a
// device-access error (permissions, missing device node, unsupported pin).
type Chip interface {
	// Export makes the pin available to userspace.
	Export(pin int) error

	// SetDirection configures the pin as input or output.
	SetDirection(pin int, dir Direction) error

	// Read returns the current level of the pin.
	Read(pin int) (Level, error)

	// Write drives an output pin to the given level.
	Write(pin int, level Level) error

	// Close releases any resources held by the chip.
	Close() error
}

// DefaultPin is the actuator output pin.
const DefaultPin = 13

// Setup exports pin and sets its direction. It is run once at startup and
// its failure is fatal to the caller.
func Setup(c Chip, pin int, dir Direction) error {
	if err := c.Export(pin); err != nil {
		return fmt.Errorf("export pin %d: %w", pin, err)
	}
	if err := c.SetDirection(pin, dir); err != nil {
		return fmt.Errorf("set pin %d direction %s: %w", pin, dir, err)
	}
	return nil
}

// ParseDirection converts "in" or "out" to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case In, Out:
		return Direction(s), nil
	}
	return "", fmt.Errorf("invalid direction %q", s)
}
