package gpio

import "fmt"

// Fake is a test double that records pin operations in memory.
type Fake struct {
	// Exported tracks which pins have been exported.
	Exported map[int]bool

	// Directions holds the last direction set per pin.
	Directions map[int]Direction

	// Levels holds the current level per pin. Read returns Low for unknown pins.
	Levels map[int]Level

	// Writes records every Write call in order.
	Writes []Write

	// Closed tracks if Close was called
	Closed bool

	// ExportError, DirectionError, ReadError and WriteError, if set, are
	// returned by the corresponding operation.
	ExportError    error
	DirectionError error
	ReadError      error
	WriteError     error
}

// Write is a single recorded pin write.
type Write struct {
	Pin   int
	Level Level
}

// NewFake creates an empty Fake chip.
func NewFake() *Fake {
	return &Fake{
		Exported:   make(map[int]bool),
		Directions: make(map[int]Direction),
		Levels:     make(map[int]Level),
	}
}

// Export marks the pin as exported.
func (f *Fake) Export(pin int) error {
	if f.ExportError != nil {
		return f.ExportError
	}
	f.Exported[pin] = true
	return nil
}

// SetDirection records the direction. The pin must be exported first.
func (f *Fake) SetDirection(pin int, dir Direction) error {
	if f.DirectionError != nil {
		return f.DirectionError
	}
	if !f.Exported[pin] {
		return fmt.Errorf("pin %d not exported", pin)
	}
	f.Directions[pin] = dir
	return nil
}

// Read returns the recorded level.
func (f *Fake) Read(pin int) (Level, error) {
	if f.ReadError != nil {
		return Low, f.ReadError
	}
	return f.Levels[pin], nil
}

// Write records the write. The pin must be configured as an output.
func (f *Fake) Write(pin int, level Level) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if f.Directions[pin] != Out {
		return fmt.Errorf("pin %d not configured as output", pin)
	}
	f.Levels[pin] = level
	f.Writes = append(f.Writes, Write{Pin: pin, Level: level})
	return nil
}

// Close marks the chip as closed.
func (f *Fake) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded writes and errors, keeping pin configuration.
func (f *Fake) Reset() {
	f.Writes = nil
	f.Closed = false
	f.ExportError = nil
	f.DirectionError = nil
	f.ReadError = nil
	f.WriteError = nil
}
