package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/temp-actuator/internal/choreo"
	"github.com/sweeney/temp-actuator/internal/controller"
	"github.com/sweeney/temp-actuator/internal/logic"
	"github.com/sweeney/temp-actuator/internal/stream"
)

var ts = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

func okCycle() controller.Cycle {
	return controller.Cycle{
		ID:       "5f0c6a2e-0000-4000-8000-000000000001",
		Duration: 1500 * time.Millisecond,
		Found:    true,
		Action: logic.Action{
			Field:     "Temperature",
			Value:     "60",
			Reading:   60,
			Triggered: true,
			Written:   true,
		},
	}
}

func TestTopic(t *testing.T) {
	if Topic != "actuator/temperature/readings" {
		t.Errorf("unexpected topic: %s", Topic)
	}
}

func TestTopicSystem(t *testing.T) {
	if TopicSystem != "actuator/temperature/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFormatPayload(t *testing.T) {
	data, err := FormatPayload(ReadingEvent{Timestamp: ts, Run: 3, Budget: 10, Cycle: okCycle()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	r := p.Reading
	if r.Timestamp != "2026-01-15T10:30:00Z" {
		t.Errorf("timestamp: got %q", r.Timestamp)
	}
	if r.Run != 3 || r.Budget != 10 {
		t.Errorf("run/budget: got %d/%d", r.Run, r.Budget)
	}
	if r.Outcome != "ok" {
		t.Errorf("outcome: got %q", r.Outcome)
	}
	if r.DurationMs != 1500 {
		t.Errorf("duration_ms: got %d", r.DurationMs)
	}
	if r.Value != "60" || r.Reading == nil || *r.Reading != 60 {
		t.Errorf("reading: got value=%q reading=%v", r.Value, r.Reading)
	}
	if !r.Triggered || !r.Written {
		t.Errorf("expected triggered and written, got %+v", r)
	}
	if r.Error != "" {
		t.Errorf("expected no error, got %q", r.Error)
	}
}

func TestFormatPayloadTimeout(t *testing.T) {
	cy := controller.Cycle{ID: "x", Err: choreo.ErrTimeout}
	data, err := FormatPayload(ReadingEvent{Timestamp: ts, Run: 1, Budget: 10, Cycle: cy})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := string(data)
	if !strings.Contains(s, `"outcome":"timeout"`) {
		t.Errorf("expected timeout outcome: %s", s)
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if p.Reading.Reading != nil {
		t.Errorf("reading value should be omitted when not found: %s", s)
	}
	if !strings.Contains(s, `"found":false`) {
		t.Errorf("expected found=false: %s", s)
	}
	if !strings.Contains(s, "timed out") {
		t.Errorf("expected error text: %s", s)
	}
}

func TestFormatPayloadZeroReadingIncluded(t *testing.T) {
	cy := controller.Cycle{Found: true, Action: logic.Action{Field: "Temperature", Value: "n/a", Lenient: true}}
	data, err := FormatPayload(ReadingEvent{Timestamp: ts, Cycle: cy})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if p.Reading.Reading == nil || *p.Reading.Reading != 0 {
		t.Errorf("lenient zero reading should be present, got %v", p.Reading.Reading)
	}
	if !p.Reading.Lenient {
		t.Error("expected lenient flag")
	}
}

func TestFormatPayloadActuationError(t *testing.T) {
	cy := okCycle()
	cy.Action.Written = false
	cy.ActuationErr = errors.New("actuate pin 13 LOW: permission denied")
	cy.Stats = stream.Stats{FieldErrors: []error{stream.ErrFieldTooLong}}

	data, err := FormatPayload(ReadingEvent{Timestamp: ts, Cycle: cy})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if p.Reading.Error != "actuate pin 13 LOW: permission denied" {
		t.Errorf("error: got %q", p.Reading.Error)
	}
	if p.Reading.FieldErrs != 1 {
		t.Errorf("field_errors: got %d", p.Reading.FieldErrs)
	}
	if p.Reading.Outcome != "ok" {
		t.Errorf("actuation failure does not fail the cycle, got outcome %q", p.Reading.Outcome)
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("PST", -8*3600)
	local := time.Date(2026, 1, 15, 2, 30, 0, 0, loc)

	data, err := FormatPayload(ReadingEvent{Timestamp: local, Cycle: okCycle()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"timestamp":"2026-01-15T10:30:00Z"`) {
		t.Errorf("timestamp not converted to UTC: %s", data)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	data, err := FormatSystemPayload(SystemEvent{Timestamp: ts, Event: "SHUTDOWN", Reason: "SIGTERM"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"system":{"timestamp":"2026-01-15T10:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(data) != want {
		t.Errorf("got %s\nwant %s", data, want)
	}
}

func TestFormatSystemPayloadOmitsReason(t *testing.T) {
	data, err := FormatSystemPayload(SystemEvent{Timestamp: ts, Event: "STARTUP"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(data), "reason") {
		t.Errorf("reason should be omitted: %s", data)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"DONE"}}`)
	data, err := FormatSystemPayload(SystemEvent{Event: "DONE", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != string(raw) {
		t.Errorf("expected raw payload, got %s", data)
	}
}

func TestWillPayloadFormat(t *testing.T) {
	var p SystemPayload
	if err := json.Unmarshal(willPayload(), &p); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if p.System.Event != "OFFLINE" {
		t.Errorf("event: got %q, want OFFLINE", p.System.Event)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.Publish(ReadingEvent{Timestamp: ts, Run: 1, Cycle: okCycle()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Timestamp: ts, Event: "STARTUP"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Events) != 1 || len(f.Payloads) != 1 {
		t.Errorf("expected 1 event and payload, got %d/%d", len(f.Events), len(f.Payloads))
	}
	if names := f.SystemEventNames(); len(names) != 1 || names[0] != "STARTUP" {
		t.Errorf("unexpected system events: %v", names)
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")

	if err := f.Publish(ReadingEvent{}); err == nil {
		t.Error("expected publish error")
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil {
		t.Error("expected publish system error")
	}
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestFakePublisherClose(t *testing.T) {
	f := NewFakePublisher()
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.Publish(ReadingEvent{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := p.PublishSystem(SystemEvent{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if (NopPublisher{}).IsConnected() {
		t.Error("nop publisher is never connected")
	}
}
