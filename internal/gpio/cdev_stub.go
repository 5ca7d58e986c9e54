//go:build !linux

package gpio

import "errors"

// Cdev is not available on non-Linux platforms.
type Cdev struct{}

// NewCdev returns an error on non-Linux platforms.
func NewCdev(name string) (*Cdev, error) {
	return nil, errors.New("gpio: character device not supported on this platform (requires Linux)")
}

func (c *Cdev) Export(pin int) error                      { return errors.New("gpio: not supported") }
func (c *Cdev) SetDirection(pin int, dir Direction) error { return errors.New("gpio: not supported") }
func (c *Cdev) Read(pin int) (Level, error)               { return Low, errors.New("gpio: not supported") }
func (c *Cdev) Write(pin int, level Level) error          { return errors.New("gpio: not supported") }

// Close is a no-op on non-Linux platforms.
func (c *Cdev) Close() error {
	return nil
}
