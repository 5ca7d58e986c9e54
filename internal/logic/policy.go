// Package logic maps decoded readings to actuator actions.
package logic

import (
	"fmt"

	"github.com/sweeney/temp-actuator/internal/gpio"
)

// Rule is a fixed threshold on one named field, gating one output pin.
// It is loaded at startup and never mutated.
type Rule struct {
	Field     string     // field name that carries the reading
	Threshold int        // readings strictly above this trigger the rule
	Pin       int        // output pin driven when the rule triggers
	Level     gpio.Level // level written to Pin
}

// DefaultRule drives pin 13 LOW when Temperature exceeds 55.
func DefaultRule() Rule {
	return Rule{
		Field:     "Temperature",
		Threshold: 55,
		Pin:       gpio.DefaultPin,
		Level:     gpio.Low,
	}
}

// PinWriter writes output pins.
type PinWriter interface {
	Write(pin int, level gpio.Level) error
}

// Action describes what Apply did with one field.
type Action struct {
	Field   string
	Value   string // raw decoded value
	Reading int    // parsed value

	// Lenient is set when Value was not a clean integer and Reading came
	// from the permissive parse.
	Lenient bool

	// Triggered is set when Reading exceeded the threshold.
	Triggered bool

	// Written is set when the pin write succeeded.
	Written bool
}

// Policy applies a Rule.
type Policy struct {
	rule Rule
	pins PinWriter
}

// NewPolicy creates a Policy that drives pins according to rule.
func NewPolicy(rule Rule, pins PinWriter) *Policy {
	return &Policy{rule: rule, pins: pins}
}

// Rule returns the policy's rule.
func (p *Policy) Rule() Rule {
	return p.rule
}

// Apply evaluates one decoded field. Fields other than the rule's field are
// ignored. When the reading exceeds the threshold the rule's pin is driven
// to the rule's level; otherwise nothing is written. The error reports a
// failed pin write only.
func (p *Policy) Apply(name, value string) (Action, error) {
	if name != p.rule.Field {
		return Action{}, nil
	}

	n, exact := ParseInt(value)
	a := Action{
		Field:   name,
		Value:   value,
		Reading: n,
		Lenient: !exact,
	}
	if n <= p.rule.Threshold {
		return a, nil
	}

	a.Triggered = true
	if err := p.pins.Write(p.rule.Pin, p.rule.Level); err != nil {
		return a, fmt.Errorf("actuate pin %d %s: %w", p.rule.Pin, p.rule.Level, err)
	}
	a.Written = true
	return a, nil
}
