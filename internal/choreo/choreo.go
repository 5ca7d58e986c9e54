// Package choreo invokes remote procedures ("Choreos") over a long-lived
// authenticated session and hands back their streamed result.
package choreo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTimeout is returned when an invocation does not complete within its
	// timeout, whether waiting for the response or reading the stream.
	ErrTimeout = errors.New("choreo: invocation timed out")

	// ErrInvocation is returned when the remote endpoint rejects a call.
	ErrInvocation = errors.New("choreo: invocation failed")

	// ErrBusy is returned when an invocation is attempted while another
	// result on the same session is still open.
	ErrBusy = errors.New("choreo: session busy")

	// ErrClosed is returned by Execute after Close.
	ErrClosed = errors.New("choreo: session closed")
)

// Credentials identify the account and application key used by a session.
type Credentials struct {
	Account    string
	AppKeyName string
	AppKey     string
}

// Validate reports missing credential fields.
func (c Credentials) Validate() error {
	switch {
	case c.Account == "":
		return errors.New("credentials: account is empty")
	case c.AppKeyName == "":
		return errors.New("credentials: app key name is empty")
	case c.AppKey == "":
		return errors.New("credentials: app key is empty")
	}
	return nil
}

// Input is a single named input to a Choreo.
type Input struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Invocation is one request to a Choreo. Create a fresh one per call.
type Invocation struct {
	ID        string
	Procedure string // path-like identifier, e.g. /Library/Yahoo/Weather/GetTemperature
	Profile   string
	Inputs    []Input
}

// NewInvocation creates an invocation of the given procedure.
func NewInvocation(procedure string) *Invocation {
	return &Invocation{
		ID:        uuid.NewString(),
		Procedure: procedure,
	}
}

// SetProfile sets the stored input profile to apply.
func (inv *Invocation) SetProfile(profile string) *Invocation {
	inv.Profile = profile
	return inv
}

// AddInput appends a named input. Order is preserved and names are not
// deduplicated; the remote procedure decides how repeats are handled.
func (inv *Invocation) AddInput(name, value string) *Invocation {
	inv.Inputs = append(inv.Inputs, Input{Name: name, Value: value})
	return inv
}

// Session executes invocations. At most one invocation may be in flight:
// the Result of one call must be closed before the next call.
type Session interface {
	// Execute runs inv. The timeout bounds the whole exchange, including
	// reads from the returned Result.
	Execute(ctx context.Context, inv *Invocation, timeout time.Duration) (*Result, error)

	// Close tears down the session.
	Close() error
}

// Result is the streamed response of one invocation. Closing it releases
// the underlying connection and frees the session for the next call.
type Result struct {
	ctx     context.Context
	body    io.ReadCloser
	release func()
	once    sync.Once
}

// NewResult wraps body. release is called exactly once, on Close.
func NewResult(ctx context.Context, body io.ReadCloser, release func()) *Result {
	return &Result{ctx: ctx, body: body, release: release}
}

// Read reads from the response stream. A read cut short by the invocation
// deadline returns an error wrapping ErrTimeout.
func (r *Result) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if err != nil && err != io.EOF && errors.Is(r.ctx.Err(), context.DeadlineExceeded) {
		return n, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return n, err
}

// Close releases the result. It is safe to call more than once.
func (r *Result) Close() error {
	var err error
	r.once.Do(func() {
		err = r.body.Close()
		if r.release != nil {
			r.release()
		}
	})
	return err
}
