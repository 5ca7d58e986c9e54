// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/temp-actuator/internal/controller"
)

// Topic is the MQTT topic for cycle readings.
const Topic = "actuator/temperature/readings"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "actuator/temperature/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends the outcome of one cycle to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event ReadingEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ReadingEvent is the outcome of one cycle.
type ReadingEvent struct {
	Timestamp time.Time
	Run       int
	Budget    int
	Cycle     controller.Cycle
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, done).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "DONE", "OFFLINE"
	Reason     string // e.g., "SIGTERM", "budget exhausted"
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a reading.
type Payload struct {
	Reading ReadingPayload `json:"reading"`
}

// ReadingPayload contains the cycle details.
type ReadingPayload struct {
	Timestamp  string `json:"timestamp"`
	ID         string `json:"id"`
	Run        int    `json:"run"`
	Budget     int    `json:"budget"`
	Outcome    string `json:"outcome"`
	DurationMs int64  `json:"duration_ms"`
	Found      bool   `json:"found"`
	Field      string `json:"field,omitempty"`
	Value      string `json:"value,omitempty"`
	Reading    *int   `json:"reading,omitempty"`
	Lenient    bool   `json:"lenient,omitempty"`
	Triggered  bool   `json:"triggered"`
	Written    bool   `json:"written"`
	FieldErrs  int    `json:"field_errors"`
	Error      string `json:"error,omitempty"`
}

// FormatPayload creates the JSON payload for a reading event.
func FormatPayload(event ReadingEvent) ([]byte, error) {
	cy := event.Cycle
	p := ReadingPayload{
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
		ID:         cy.ID,
		Run:        event.Run,
		Budget:     event.Budget,
		Outcome:    cy.Outcome(),
		DurationMs: cy.Duration.Milliseconds(),
		Found:      cy.Found,
		Triggered:  cy.Action.Triggered,
		Written:    cy.Action.Written,
		FieldErrs:  len(cy.Stats.FieldErrors),
	}
	if cy.Found {
		reading := cy.Action.Reading
		p.Field = cy.Action.Field
		p.Value = cy.Action.Value
		p.Reading = &reading
		p.Lenient = cy.Action.Lenient
	}
	switch {
	case cy.Err != nil:
		p.Error = cy.Err.Error()
	case cy.ActuationErr != nil:
		p.Error = cy.ActuationErr.Error()
	}
	return json.Marshal(Payload{Reading: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (OFFLINE will) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// willPayload is registered with the broker at connect time and published
// by it if the controller drops off without a clean disconnect.
func willPayload() []byte {
	data, _ := json.Marshal(SystemPayload{System: SystemPayloadInner{Event: "OFFLINE", Reason: "connection lost"}})
	return data
}
