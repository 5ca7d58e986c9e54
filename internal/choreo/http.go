package choreo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// apiPath is prefixed to the procedure identifier to form the request path.
const apiPath = "/arcturus-web/api-1.0/ar"

// Config configures an HTTPSession.
type Config struct {
	Credentials Credentials

	// Transport selects plain or TLS connections. Defaults to TLS with the
	// system roots.
	Transport Transport

	// BaseURL overrides the endpoint derived from the account name.
	BaseURL string
}

// HTTPSession executes invocations against the Choreo HTTP endpoint.
type HTTPSession struct {
	creds   Credentials
	baseURL string
	client  *http.Client

	mu       sync.Mutex
	inFlight bool
	closed   bool
}

// NewSession creates the session. It fails if credentials are incomplete or
// the transport cannot be built.
func NewSession(cfg Config) (*HTTPSession, error) {
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}
	tr := cfg.Transport
	if tr == nil {
		tr = TLSTransport("")
	}
	rt, err := tr.RoundTripper()
	if err != nil {
		return nil, fmt.Errorf("build transport: %w", err)
	}

	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("%s://%s.temboolive.com", tr.Scheme(), cfg.Credentials.Account)
	}

	return &HTTPSession{
		creds:   cfg.Credentials,
		baseURL: strings.TrimRight(base, "/"),
		client:  &http.Client{Transport: rt},
	}, nil
}

type requestBody struct {
	Preset string  `json:"preset,omitempty"`
	Inputs []Input `json:"inputs"`
}

// Execute posts inv and returns its streamed result. The result must be
// closed before the next call.
func (s *HTTPSession) Execute(ctx context.Context, inv *Invocation, timeout time.Duration) (*Result, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	release := func() {
		cancel()
		s.releaseSlot()
	}

	req, err := s.newRequest(ctx, inv)
	if err != nil {
		release()
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		release()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s after %v: %w", inv.Procedure, timeout, ErrTimeout)
		}
		return nil, fmt.Errorf("%s: %w", inv.Procedure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		release()
		return nil, fmt.Errorf("%w: %s: status %d: %s", ErrInvocation, inv.Procedure, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return NewResult(ctx, resp.Body, release), nil
}

func (s *HTTPSession) newRequest(ctx context.Context, inv *Invocation) (*http.Request, error) {
	inputs := inv.Inputs
	if inputs == nil {
		inputs = []Input{}
	}
	body, err := json.Marshal(requestBody{Preset: inv.Profile, Inputs: inputs})
	if err != nil {
		return nil, fmt.Errorf("encode invocation: %w", err)
	}

	url := s.baseURL + apiPath + inv.Procedure + "?format=rfc"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(s.creds.AppKeyName, s.creds.AppKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-temboo-domain", "/"+s.creds.Account+"/master")
	return req, nil
}

func (s *HTTPSession) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.inFlight {
		return ErrBusy
	}
	s.inFlight = true
	return nil
}

func (s *HTTPSession) releaseSlot() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// Close marks the session closed and drops idle connections.
func (s *HTTPSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.client.CloseIdleConnections()
	return nil
}
