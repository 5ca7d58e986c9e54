// Package schedule bounds how often and how many times the controller
// invokes the remote procedure.
package schedule

import "time"

// State is the scheduler's view of progress. It lives for the process
// lifetime and is never persisted.
type State struct {
	LastRun   time.Time     // start of the most recent cycle
	Completed int           // cycles started so far
	Budget    int           // maximum cycles for the process lifetime
	Interval  time.Duration // minimum time between cycle starts
}

// Remaining returns the number of cycles left in the budget.
func (s State) Remaining() int {
	if s.Completed >= s.Budget {
		return 0
	}
	return s.Budget - s.Completed
}

// Scheduler gates cycles on a minimum interval and a lifetime budget.
// It is owned by a single run-loop and is not safe for concurrent use.
type Scheduler struct {
	state State
}

// New creates a Scheduler. The first cycle is due immediately at start.
func New(interval time.Duration, budget int, start time.Time) *Scheduler {
	return &Scheduler{
		state: State{
			LastRun:  start.Add(-interval),
			Budget:   budget,
			Interval: interval,
		},
	}
}

// Done reports whether the budget is exhausted.
func (s *Scheduler) Done() bool {
	return s.state.Completed >= s.state.Budget
}

// Due reports whether a cycle may start at now.
func (s *Scheduler) Due(now time.Time) bool {
	return !s.Done() && now.Sub(s.state.LastRun) >= s.state.Interval
}

// Begin charges one unit of budget and stamps now as the cycle start. The
// unit is charged whether or not the cycle later succeeds.
func (s *Scheduler) Begin(now time.Time) int {
	s.state.Completed++
	s.state.LastRun = now
	return s.state.Completed
}

// Next returns how long to wait from now until the next cycle is due.
// It returns 0 if a cycle is already due.
func (s *Scheduler) Next(now time.Time) time.Duration {
	d := s.state.LastRun.Add(s.state.Interval).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// State returns a copy of the current state.
func (s *Scheduler) State() State {
	return s.state
}
