package choreo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"
)

// FakeResponse is one scripted reply of a FakeSession.
type FakeResponse struct {
	// Body is streamed back as the result.
	Body []byte

	// Err, if set, is returned by Execute instead of a result.
	Err error

	// ReadErr, if set, is returned by the result once Body is exhausted,
	// simulating a connection that stalls or drops mid-stream.
	ReadErr error
}

// FakeSession is a test double that replays scripted responses.
type FakeSession struct {
	// Responses are consumed one per Execute. When exhausted, the last
	// response repeats.
	Responses []FakeResponse

	index int
	open  bool

	// Invocations records every invocation passed to Execute.
	Invocations []*Invocation

	// Timeouts records the timeout of every Execute call.
	Timeouts []time.Duration

	// Released counts results that have been closed.
	Released int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeSession creates a FakeSession with the given responses.
func NewFakeSession(responses ...FakeResponse) *FakeSession {
	return &FakeSession{Responses: responses}
}

// Execute returns the next scripted response.
func (f *FakeSession) Execute(ctx context.Context, inv *Invocation, timeout time.Duration) (*Result, error) {
	if f.Closed {
		return nil, ErrClosed
	}
	if f.open {
		return nil, ErrBusy
	}
	f.Invocations = append(f.Invocations, inv)
	f.Timeouts = append(f.Timeouts, timeout)

	if len(f.Responses) == 0 {
		return nil, errors.New("no responses configured")
	}
	resp := f.Responses[f.index]
	if f.index < len(f.Responses)-1 {
		f.index++
	}
	if resp.Err != nil {
		return nil, resp.Err
	}

	f.open = true
	var r io.Reader = bytes.NewReader(resp.Body)
	if resp.ReadErr != nil {
		r = io.MultiReader(r, errReader{resp.ReadErr})
	}
	return NewResult(ctx, io.NopCloser(r), func() {
		f.open = false
		f.Released++
	}), nil
}

// Close marks the session as closed.
func (f *FakeSession) Close() error {
	f.Closed = true
	return nil
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
