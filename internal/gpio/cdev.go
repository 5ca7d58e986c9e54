//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// Cdev drives pins through the Linux GPIO character device. Unlike Sysfs it
// keeps requested lines open, because the kernel releases a line's output
// state when its request is closed.
type Cdev struct {
	mu    sync.Mutex
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewCdev opens the named chip (e.g. "gpiochip0").
func NewCdev(name string) (*Cdev, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer("temp-actuator"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Cdev{chip: chip, lines: make(map[int]*gpiocdev.Line)}, nil
}

// Export requests the line without changing its configuration.
func (c *Cdev) Export(pin int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.line(pin)
	return err
}

// SetDirection reconfigures the line as input or output. Outputs start LOW.
func (c *Cdev) SetDirection(pin int, dir Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, err := c.line(pin)
	if err != nil {
		return err
	}
	switch dir {
	case In:
		err = l.Reconfigure(gpiocdev.AsInput)
	case Out:
		err = l.Reconfigure(gpiocdev.AsOutput(0))
	default:
		return fmt.Errorf("invalid direction %q", dir)
	}
	if err != nil {
		return fmt.Errorf("reconfigure pin %d: %w", pin, err)
	}
	return nil
}

// Read returns the line's current level.
func (c *Cdev) Read(pin int) (Level, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, err := c.line(pin)
	if err != nil {
		return Low, err
	}
	v, err := l.Value()
	if err != nil {
		return Low, fmt.Errorf("read pin %d: %w", pin, err)
	}
	if v != 0 {
		return High, nil
	}
	return Low, nil
}

// Write sets the line's level.
func (c *Cdev) Write(pin int, level Level) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, err := c.line(pin)
	if err != nil {
		return err
	}
	if err := l.SetValue(int(level)); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// line returns the requested line for pin, requesting it as-is if needed.
// Caller must hold c.mu.
func (c *Cdev) line(pin int) (*gpiocdev.Line, error) {
	if l, ok := c.lines[pin]; ok {
		return l, nil
	}
	l, err := c.chip.RequestLine(pin, gpiocdev.AsIs)
	if err != nil {
		return nil, fmt.Errorf("request pin %d: %w", pin, err)
	}
	c.lines[pin] = l
	return l, nil
}

// Close releases all requested lines and the chip.
func (c *Cdev) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for pin, l := range c.lines {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
		delete(c.lines, pin)
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		c.chip = nil
	}

	return errors.Join(errs...)
}
