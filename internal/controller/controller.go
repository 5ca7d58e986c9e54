// Package controller sequences one scheduler cycle: build the invocation,
// execute it, decode the field of interest and apply the actuation policy.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/temp-actuator/internal/choreo"
	"github.com/sweeney/temp-actuator/internal/logic"
	"github.com/sweeney/temp-actuator/internal/stream"
)

// Config describes the invocation issued every cycle.
type Config struct {
	Procedure   string
	Profile     string
	Inputs      []choreo.Input
	Timeout     time.Duration
	MaxFieldLen int
}

// Cycle is the outcome of one RunCycle call.
type Cycle struct {
	ID       string
	Started  time.Time
	Duration time.Duration

	// Found is set when the field of interest was decoded and applied.
	Found  bool
	Action logic.Action

	Stats stream.Stats

	// ActuationErr is set when the policy triggered but the pin write failed.
	ActuationErr error

	// Err is set when the invocation failed or the stream broke off.
	Err error
}

// Cycle outcomes, as reported by Outcome.
const (
	OutcomeOK         = "ok"
	OutcomeTimeout    = "timeout"
	OutcomeIncomplete = "incomplete"
	OutcomeFailed     = "failed"
)

// Outcome classifies the cycle for logs and metrics.
func (c Cycle) Outcome() string {
	switch {
	case c.Err == nil:
		return OutcomeOK
	case c.TimedOut():
		return OutcomeTimeout
	case errors.Is(c.Err, stream.ErrIncomplete):
		return OutcomeIncomplete
	}
	return OutcomeFailed
}

// TimedOut reports whether the cycle ended because the invocation timed out.
func (c Cycle) TimedOut() bool {
	return errors.Is(c.Err, choreo.ErrTimeout)
}

// Controller runs cycles against one session. Cycles must not overlap.
type Controller struct {
	cfg     Config
	session choreo.Session
	policy  *logic.Policy
	now     func() time.Time
}

// New creates a Controller. now defaults to time.Now.
func New(cfg Config, session choreo.Session, policy *logic.Policy, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{cfg: cfg, session: session, policy: policy, now: now}
}

// Invocation builds a fresh invocation for one cycle.
func (c *Controller) Invocation() *choreo.Invocation {
	inv := choreo.NewInvocation(c.cfg.Procedure).SetProfile(c.cfg.Profile)
	for _, in := range c.cfg.Inputs {
		inv.AddInput(in.Name, in.Value)
	}
	return inv
}

// RunCycle executes one invocation and applies the policy to the decoded
// field. Failures are reported in the returned Cycle, never escalated. The
// response stream is released before RunCycle returns.
func (c *Controller) RunCycle(ctx context.Context) (cy Cycle) {
	inv := c.Invocation()
	cy.ID = inv.ID
	cy.Started = c.now()
	defer func() {
		cy.Duration = c.now().Sub(cy.Started)
	}()

	res, err := c.session.Execute(ctx, inv, c.cfg.Timeout)
	if err != nil {
		cy.Err = fmt.Errorf("execute %s: %w", inv.Procedure, err)
		return cy
	}
	defer res.Close()

	dec := stream.NewDecoder(res, c.cfg.MaxFieldLen)
	st, err := dec.Extract(c.policy.Rule().Field, func(name, value string) {
		a, err := c.policy.Apply(name, value)
		cy.Found = true
		cy.Action = a
		if err != nil {
			cy.ActuationErr = err
		}
	})
	cy.Stats = st
	if err != nil {
		cy.Err = fmt.Errorf("decode response: %w", err)
	}
	return cy
}
