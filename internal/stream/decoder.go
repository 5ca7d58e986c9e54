// Package stream decodes the record-oriented response stream returned by a
// Choreo invocation.
//
// The stream is a flat sequence of fields, each encoded as
//
//	<name> 0x1F <value> 0x1E
//
// with no length prefix and no end marker other than the end of the stream.
// Names and values are bounded text; the bound is fixed when the Decoder is
// constructed.
package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	// FieldSeparator terminates a field name.
	FieldSeparator byte = 0x1F
	// RecordSeparator terminates a field value.
	RecordSeparator byte = 0x1E

	// DefaultMaxLen is the buffer size for names and values, including one
	// byte reserved for a terminator.
	DefaultMaxLen = 64
)

var (
	// ErrFieldTooLong is returned when a name or value does not fit the
	// decoder's buffer. The rest of the field is discarded.
	ErrFieldTooLong = errors.New("field exceeds buffer")

	// ErrIncomplete is returned when the stream ends inside a field.
	ErrIncomplete = errors.New("incomplete response")

	// ErrMalformed is returned when a record separator appears inside a name.
	ErrMalformed = errors.New("malformed field")
)

// Decoder reads fields from a response stream. It is not safe for
// concurrent use; create one per stream.
type Decoder struct {
	r   *bufio.Reader
	buf []byte
	err error // sticky; set on end-of-stream inside a field or a read failure
}

// NewDecoder returns a Decoder reading from r. Names and values longer than
// maxLen-1 bytes are rejected. A maxLen below 2 selects DefaultMaxLen.
func NewDecoder(r io.Reader, maxLen int) *Decoder {
	if maxLen < 2 {
		maxLen = DefaultMaxLen
	}
	return &Decoder{
		r:   bufio.NewReader(r),
		buf: make([]byte, maxLen-1),
	}
}

// MaxLen returns the configured buffer size, including the terminator slot.
func (d *Decoder) MaxLen() int {
	return len(d.buf) + 1
}

// More reports whether another field is available. It returns false at a
// clean end of stream and after any fatal error; check Err to tell them apart.
func (d *Decoder) More() bool {
	if d.err != nil {
		return false
	}
	if _, err := d.r.Peek(1); err != nil {
		if err != io.EOF {
			d.err = fmt.Errorf("read stream: %w", err)
		}
		return false
	}
	return true
}

// Err returns the fatal error that stopped decoding, or nil after a clean end.
func (d *Decoder) Err() error {
	return d.err
}

// ReadName reads a field name up to the field separator.
func (d *Decoder) ReadName() (string, error) {
	name, err := d.readUntil(FieldSeparator, true)
	if err != nil {
		return "", fmt.Errorf("read name: %w", err)
	}
	return name, nil
}

// ReadValue reads a field value up to the record separator.
func (d *Decoder) ReadValue() (string, error) {
	value, err := d.readUntil(RecordSeparator, false)
	if err != nil {
		return "", fmt.Errorf("read value: %w", err)
	}
	return value, nil
}

// Skip discards the remainder of the current field up to and including the
// record separator, without buffering it.
func (d *Decoder) Skip() error {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return fmt.Errorf("skip field: %w", d.fail(err))
		}
		if b == RecordSeparator {
			return nil
		}
	}
}

// readUntil copies bytes up to delim into the fixed buffer. Overflowing bytes
// are counted but not stored, so the stream stays aligned on the delimiter.
// When stopAtRecord is set a record separator ends the field early as
// malformed.
func (d *Decoder) readUntil(delim byte, stopAtRecord bool) (string, error) {
	n := 0
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return "", d.fail(err)
		}
		if b == delim {
			break
		}
		if stopAtRecord && b == RecordSeparator {
			return "", ErrMalformed
		}
		if n < len(d.buf) {
			d.buf[n] = b
		}
		n++
	}
	if n > len(d.buf) {
		return "", fmt.Errorf("%w: %d bytes, max %d", ErrFieldTooLong, n, len(d.buf))
	}
	return string(d.buf[:n]), nil
}

func (d *Decoder) fail(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		d.err = ErrIncomplete
	} else {
		d.err = fmt.Errorf("read stream: %w", err)
	}
	return d.err
}

// Stats summarises one Extract pass.
type Stats struct {
	Fields  int // fields seen, including those that failed to decode
	Matched int // fields passed to the callback
	Skipped int // fields discarded by name

	// FieldErrors holds per-field decode errors that did not stop the pass.
	FieldErrors []error
}

// Extract reads every remaining field and calls fn with the value of each
// field named want. Other fields are discarded without being buffered. A
// field that fails to decode is recorded in Stats.FieldErrors and never
// passed to fn. The returned error is non-nil only when the stream itself
// failed (ErrIncomplete or a read error).
func (d *Decoder) Extract(want string, fn func(name, value string)) (Stats, error) {
	var st Stats
	for d.More() {
		st.Fields++

		name, err := d.ReadName()
		if err != nil {
			if d.err != nil {
				return st, d.err
			}
			st.FieldErrors = append(st.FieldErrors, err)
			if errors.Is(err, ErrFieldTooLong) {
				if err := d.Skip(); err != nil {
					return st, d.err
				}
			}
			continue
		}

		if name != want {
			st.Skipped++
			if err := d.Skip(); err != nil {
				return st, d.err
			}
			continue
		}

		value, err := d.ReadValue()
		if err != nil {
			if d.err != nil {
				return st, d.err
			}
			st.FieldErrors = append(st.FieldErrors, fmt.Errorf("field %q: %w", name, err))
			continue
		}

		st.Matched++
		fn(name, value)
	}
	return st, d.err
}
