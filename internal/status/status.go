// Package status provides a thread-safe status tracker for the temp-actuator
// daemon. It is written by the run-loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/temp-actuator/internal/controller"
	"github.com/sweeney/temp-actuator/internal/schedule"
)

// NetworkInfo contains network state reported by the host helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	IntervalMs int64
	TimeoutMs  int64
	Budget     int
	Procedure  string
	Field      string
	Threshold  int
	Pin        int
	Transport  string
	GPIO       string
	Broker     string
	HTTPAddr   string
}

// Counts accumulates cycle outcomes over the process lifetime.
type Counts struct {
	OK              int
	Timeouts        int
	Incomplete      int
	Failures        int
	FieldErrors     int
	Actuations      int
	ActuationErrors int
}

// LastCycle summarises the most recent cycle.
type LastCycle struct {
	Run       int
	ID        string
	Started   time.Time
	Duration  time.Duration
	Outcome   string
	Found     bool
	Value     string
	Reading   int
	Lenient   bool
	Triggered bool
	Written   bool
	Error     string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	StartTime     time.Time
	Now           time.Time
	Schedule      schedule.State
	NextRun       time.Time
	Done          bool
	Last          *LastCycle
	LastActuation time.Time
	Counts        Counts
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Schedule:  schedule.State{Budget: cfg.Budget},
		},
		now: time.Now,
	}
}

// RecordCycle folds one cycle's outcome into the counters.
func (t *Tracker) RecordCycle(run int, cy controller.Cycle) {
	last := &LastCycle{
		Run:       run,
		ID:        cy.ID,
		Started:   cy.Started,
		Duration:  cy.Duration,
		Outcome:   cy.Outcome(),
		Found:     cy.Found,
		Value:     cy.Action.Value,
		Reading:   cy.Action.Reading,
		Lenient:   cy.Action.Lenient,
		Triggered: cy.Action.Triggered,
		Written:   cy.Action.Written,
	}
	switch {
	case cy.Err != nil:
		last.Error = cy.Err.Error()
	case cy.ActuationErr != nil:
		last.Error = cy.ActuationErr.Error()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Last = last
	c := &t.snap.Counts
	switch last.Outcome {
	case controller.OutcomeOK:
		c.OK++
	case controller.OutcomeTimeout:
		c.Timeouts++
	case controller.OutcomeIncomplete:
		c.Incomplete++
	default:
		c.Failures++
	}
	c.FieldErrors += len(cy.Stats.FieldErrors)
	if cy.Action.Written {
		c.Actuations++
		t.snap.LastActuation = cy.Started.Add(cy.Duration)
	} else if cy.Action.Triggered {
		c.ActuationErrors++
	}
}

// SetSchedule records the scheduler state and when the next cycle is due.
func (t *Tracker) SetSchedule(st schedule.State, next time.Time) {
	t.mu.Lock()
	t.snap.Schedule = st
	t.snap.NextRun = next
	t.mu.Unlock()
}

// SetDone marks the budget as exhausted.
func (t *Tracker) SetDone() {
	t.mu.Lock()
	t.snap.Done = true
	t.snap.NextRun = time.Time{}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
