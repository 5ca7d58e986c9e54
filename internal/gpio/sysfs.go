package gpio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SysfsRoot is where the kernel exposes the legacy GPIO interface.
const SysfsRoot = "/sys/class/gpio"

// Sysfs drives pins through the kernel's sysfs files. No file handle is kept
// between calls: every operation opens, reads or writes, and closes.
type Sysfs struct {
	Root string
}

// NewSysfs returns a Sysfs chip rooted at root (SysfsRoot if empty).
func NewSysfs(root string) *Sysfs {
	if root == "" {
		root = SysfsRoot
	}
	return &Sysfs{Root: root}
}

func (s *Sysfs) pinDir(pin int) string {
	return filepath.Join(s.Root, fmt.Sprintf("gpio%d", pin))
}

// Export writes the pin number to the export file. A pin that is already
// exported is left alone, since the kernel rejects a second export.
func (s *Sysfs) Export(pin int) error {
	if s.IsExported(pin) {
		return nil
	}
	return writeFile(filepath.Join(s.Root, "export"), strconv.Itoa(pin))
}

// IsExported reports whether the kernel has created the pin's gpioN directory.
func (s *Sysfs) IsExported(pin int) bool {
	_, err := os.Stat(s.pinDir(pin))
	return err == nil
}

// Unexport releases the pin back to the kernel.
func (s *Sysfs) Unexport(pin int) error {
	return writeFile(filepath.Join(s.Root, "unexport"), strconv.Itoa(pin))
}

// SetDirection writes "in" or "out" to the pin's direction file.
func (s *Sysfs) SetDirection(pin int, dir Direction) error {
	if dir != In && dir != Out {
		return fmt.Errorf("invalid direction %q", dir)
	}
	return writeFile(filepath.Join(s.pinDir(pin), "direction"), string(dir))
}

// Read returns the pin level from its value file.
func (s *Sysfs) Read(pin int) (Level, error) {
	data, err := os.ReadFile(filepath.Join(s.pinDir(pin), "value"))
	if err != nil {
		return Low, fmt.Errorf("read pin %d value: %w", pin, err)
	}
	v := strings.TrimSpace(string(data))
	switch v {
	case "0":
		return Low, nil
	case "1":
		return High, nil
	}
	return Low, fmt.Errorf("read pin %d value: unexpected %q", pin, v)
}

// Write drives the pin by writing "0" or "1" to its value file.
func (s *Sysfs) Write(pin int, level Level) error {
	v := "0"
	if level == High {
		v = "1"
	}
	return writeFile(filepath.Join(s.pinDir(pin), "value"), v)
}

// Close is a no-op; Sysfs holds no resources.
func (s *Sysfs) Close() error {
	return nil
}

// writeFile writes v and a newline to an existing attribute file.
// Attribute files are never created: a missing file is a device error.
func writeFile(path, v string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("open %s: device node missing: %w", path, err)
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString(v + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
