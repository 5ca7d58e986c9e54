package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/temp-actuator/internal/choreo"
	"github.com/sweeney/temp-actuator/internal/controller"
	"github.com/sweeney/temp-actuator/internal/logic"
	"github.com/sweeney/temp-actuator/internal/schedule"
	"github.com/sweeney/temp-actuator/internal/stream"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func cycle(value string, reading int, triggered, written bool) controller.Cycle {
	return controller.Cycle{
		ID:       "c1",
		Started:  t0,
		Duration: 2 * time.Second,
		Found:    true,
		Action: logic.Action{
			Field:     "Temperature",
			Value:     value,
			Reading:   reading,
			Triggered: triggered,
			Written:   written,
		},
		Stats: stream.Stats{Fields: 3, Matched: 1, Skipped: 2},
	}
}

func TestNewTracker(t *testing.T) {
	cfg := Config{IntervalMs: 30000, Budget: 10, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"}
	tr := NewTracker(t0, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(t0) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, t0)
	}
	if snap.Config.IntervalMs != 30000 {
		t.Errorf("Config.IntervalMs: got %d, want 30000", snap.Config.IntervalMs)
	}
	if snap.Schedule.Budget != 10 {
		t.Errorf("Schedule.Budget: got %d, want 10", snap.Schedule.Budget)
	}
	if snap.Last != nil {
		t.Error("expected no last cycle initially")
	}
	if snap.Done {
		t.Error("expected Done=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestRecordCycleActuation(t *testing.T) {
	tr := NewTracker(t0, Config{})

	tr.RecordCycle(1, cycle("72", 72, true, true))

	snap := tr.Snapshot()
	if snap.Last == nil {
		t.Fatal("expected last cycle")
	}
	if snap.Last.Run != 1 {
		t.Errorf("Last.Run: got %d, want 1", snap.Last.Run)
	}
	if snap.Last.Outcome != controller.OutcomeOK {
		t.Errorf("Last.Outcome: got %q, want ok", snap.Last.Outcome)
	}
	if snap.Last.Reading != 72 {
		t.Errorf("Last.Reading: got %d, want 72", snap.Last.Reading)
	}
	if snap.Counts.OK != 1 || snap.Counts.Actuations != 1 {
		t.Errorf("Counts: got %+v", snap.Counts)
	}
	if want := t0.Add(2 * time.Second); !snap.LastActuation.Equal(want) {
		t.Errorf("LastActuation: got %v, want %v", snap.LastActuation, want)
	}
}

func TestRecordCycleBelowThreshold(t *testing.T) {
	tr := NewTracker(t0, Config{})

	tr.RecordCycle(1, cycle("40", 40, false, false))

	snap := tr.Snapshot()
	if snap.Counts.Actuations != 0 || snap.Counts.ActuationErrors != 0 {
		t.Errorf("Counts: got %+v", snap.Counts)
	}
	if !snap.LastActuation.IsZero() {
		t.Errorf("LastActuation: got %v, want zero", snap.LastActuation)
	}
}

func TestRecordCycleActuationError(t *testing.T) {
	tr := NewTracker(t0, Config{})

	cy := cycle("99", 99, true, false)
	cy.ActuationErr = errors.New("write gpio13: permission denied")
	tr.RecordCycle(1, cy)

	snap := tr.Snapshot()
	if snap.Counts.ActuationErrors != 1 {
		t.Errorf("ActuationErrors: got %d, want 1", snap.Counts.ActuationErrors)
	}
	if snap.Last.Error != "write gpio13: permission denied" {
		t.Errorf("Last.Error: got %q", snap.Last.Error)
	}
}

func TestRecordCycleOutcomes(t *testing.T) {
	tr := NewTracker(t0, Config{})

	tr.RecordCycle(1, controller.Cycle{Err: fmt.Errorf("execute: %w", choreo.ErrTimeout)})
	tr.RecordCycle(2, controller.Cycle{Err: fmt.Errorf("decode: %w", stream.ErrIncomplete)})
	tr.RecordCycle(3, controller.Cycle{Err: fmt.Errorf("execute: %w", choreo.ErrInvocation)})
	fieldErrs := cycle("60", 60, true, true)
	fieldErrs.Stats.FieldErrors = []error{stream.ErrFieldTooLong, stream.ErrFieldTooLong}
	tr.RecordCycle(4, fieldErrs)

	c := tr.Snapshot().Counts
	if c.Timeouts != 1 {
		t.Errorf("Timeouts: got %d, want 1", c.Timeouts)
	}
	if c.Incomplete != 1 {
		t.Errorf("Incomplete: got %d, want 1", c.Incomplete)
	}
	if c.Failures != 1 {
		t.Errorf("Failures: got %d, want 1", c.Failures)
	}
	if c.OK != 1 {
		t.Errorf("OK: got %d, want 1", c.OK)
	}
	if c.FieldErrors != 2 {
		t.Errorf("FieldErrors: got %d, want 2", c.FieldErrors)
	}
}

func TestSetScheduleAndDone(t *testing.T) {
	tr := NewTracker(t0, Config{Budget: 2})

	next := t0.Add(30 * time.Second)
	tr.SetSchedule(schedule.State{LastRun: t0, Completed: 1, Budget: 2, Interval: 30 * time.Second}, next)

	snap := tr.Snapshot()
	if snap.Schedule.Remaining() != 1 {
		t.Errorf("Remaining: got %d, want 1", snap.Schedule.Remaining())
	}
	if !snap.NextRun.Equal(next) {
		t.Errorf("NextRun: got %v, want %v", snap.NextRun, next)
	}

	tr.SetDone()
	snap = tr.Snapshot()
	if !snap.Done {
		t.Error("expected Done=true")
	}
	if !snap.NextRun.IsZero() {
		t.Errorf("NextRun after done: got %v, want zero", snap.NextRun)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{StartTime: t0, Now: t0.Add(15 * time.Minute)}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(t0, Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(t0, Config{})
	tr.RecordCycle(1, cycle("72", 72, true, true))

	snap1 := tr.Snapshot()

	tr.RecordCycle(2, cycle("40", 40, false, false))

	if snap1.Last.Run != 1 || snap1.Last.Reading != 72 {
		t.Errorf("snapshot should be a copy; got %+v", snap1.Last)
	}
	if snap1.Counts.OK != 1 {
		t.Errorf("snapshot should be a copy; OK=%d", snap1.Counts.OK)
	}
}

func TestFormatJSON(t *testing.T) {
	tr := NewTracker(t0, Config{IntervalMs: 30000, TimeoutMs: 300000, Budget: 10, Pin: 13, Threshold: 55, Broker: "tcp://localhost:1883"})
	tr.now = func() time.Time { return t0.Add(15 * time.Minute) }
	tr.RecordCycle(1, cycle("72", 72, true, true))
	tr.SetSchedule(schedule.State{LastRun: t0, Completed: 1, Budget: 10, Interval: 30 * time.Second}, t0.Add(30*time.Second))
	tr.SetMQTTConnected(true)

	data := FormatJSON(tr.Snapshot())

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if s.Schedule.Runs != 1 || s.Schedule.Remaining != 9 {
		t.Errorf("Schedule: got %+v", s.Schedule)
	}
	if s.Schedule.NextRun != "2026-01-01T00:00:30Z" {
		t.Errorf("NextRun: got %q", s.Schedule.NextRun)
	}
	if s.Last == nil || s.Last.Reading != 72 || !s.Last.Written {
		t.Errorf("Last: got %+v", s.Last)
	}
	if s.Last.DurationMs != 2000 {
		t.Errorf("DurationMs: got %d, want 2000", s.Last.DurationMs)
	}
	if !s.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if s.Counts.Actuations != 1 {
		t.Errorf("Counts.Actuations: got %d, want 1", s.Counts.Actuations)
	}
	if s.Config.Threshold != 55 || s.Config.Pin != 13 {
		t.Errorf("Config: got %+v", s.Config)
	}
	// Event and Reason should be omitted
	if s.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", s.Event)
	}
	if s.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", s.Reason)
	}
}

func TestFormatJSONBeforeFirstCycle(t *testing.T) {
	snap := Snapshot{
		StartTime: t0,
		Now:       t0.Add(time.Second),
		Schedule:  schedule.State{LastRun: t0.Add(-30 * time.Second), Budget: 10, Interval: 30 * time.Second},
	}

	data := FormatJSON(snap)

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"].(map[string]interface{})
	if _, exists := status["last_cycle"]; exists {
		t.Error("last_cycle should be omitted before the first cycle")
	}
	sched := status["schedule"].(map[string]interface{})
	if _, exists := sched["last_run"]; exists {
		t.Error("last_run should be omitted before the first cycle")
	}
	if sched["remaining"] != float64(10) {
		t.Errorf("remaining: got %v, want 10", sched["remaining"])
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{
		StartTime:     t0,
		Now:           t0.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "STARTUP" {
		t.Errorf("Event: got %q, want STARTUP", parsed.Status.Event)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	snap := Snapshot{
		StartTime: t0,
		Now:       t0.Add(30 * time.Minute),
		Done:      true,
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if !parsed.Status.Schedule.Done {
		t.Error("expected Schedule.Done=true")
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: t0, Now: t0.Add(time.Second)}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: t0,
		Now:       t0.Add(time.Minute),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	json.Unmarshal(data, &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", parsed.Status.Network.IP)
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.RecordCycle(i, cycle("60", 60, true, true))
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
		}
	}()

	wg.Wait()
}
