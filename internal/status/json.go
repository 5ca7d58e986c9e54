package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Schedule      ScheduleJSON `json:"schedule"`
	Last          *LastJSON    `json:"last_cycle,omitempty"`
	LastActuation string       `json:"last_actuation,omitempty"`
	Counts        CountsJSON   `json:"counts"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ScheduleJSON reports progress through the budget.
type ScheduleJSON struct {
	Runs      int    `json:"runs"`
	Budget    int    `json:"budget"`
	Remaining int    `json:"remaining"`
	LastRun   string `json:"last_run,omitempty"`
	NextRun   string `json:"next_run,omitempty"`
	Done      bool   `json:"done"`
}

// LastJSON is the JSON representation of the most recent cycle.
type LastJSON struct {
	Run        int    `json:"run"`
	ID         string `json:"id"`
	Started    string `json:"started"`
	DurationMs int64  `json:"duration_ms"`
	Outcome    string `json:"outcome"`
	Found      bool   `json:"found"`
	Value      string `json:"value,omitempty"`
	Reading    int    `json:"reading"`
	Lenient    bool   `json:"lenient,omitempty"`
	Triggered  bool   `json:"triggered"`
	Written    bool   `json:"written"`
	Error      string `json:"error,omitempty"`
}

// CountsJSON is the JSON representation of cycle counters.
type CountsJSON struct {
	OK              int `json:"ok"`
	Timeouts        int `json:"timeouts"`
	Incomplete      int `json:"incomplete"`
	Failures        int `json:"failures"`
	FieldErrors     int `json:"field_errors"`
	Actuations      int `json:"actuations"`
	ActuationErrors int `json:"actuation_errors"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	IntervalMs int64  `json:"interval_ms"`
	TimeoutMs  int64  `json:"timeout_ms"`
	Budget     int    `json:"budget"`
	Procedure  string `json:"procedure"`
	Field      string `json:"field"`
	Threshold  int    `json:"threshold"`
	Pin        int    `json:"pin"`
	Transport  string `json:"transport"`
	GPIO       string `json:"gpio"`
	Broker     string `json:"broker,omitempty"`
	HTTPAddr   string `json:"http_addr"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     formatTime(snap.StartTime),
		Timestamp:     formatTime(snap.Now),
		Schedule: ScheduleJSON{
			Runs:      snap.Schedule.Completed,
			Budget:    snap.Schedule.Budget,
			Remaining: snap.Schedule.Remaining(),
			LastRun:   formatTime(snap.Schedule.LastRun),
			NextRun:   formatTime(snap.NextRun),
			Done:      snap.Done,
		},
		LastActuation: formatTime(snap.LastActuation),
		Counts: CountsJSON{
			OK:              snap.Counts.OK,
			Timeouts:        snap.Counts.Timeouts,
			Incomplete:      snap.Counts.Incomplete,
			Failures:        snap.Counts.Failures,
			FieldErrors:     snap.Counts.FieldErrors,
			Actuations:      snap.Counts.Actuations,
			ActuationErrors: snap.Counts.ActuationErrors,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			IntervalMs: snap.Config.IntervalMs,
			TimeoutMs:  snap.Config.TimeoutMs,
			Budget:     snap.Config.Budget,
			Procedure:  snap.Config.Procedure,
			Field:      snap.Config.Field,
			Threshold:  snap.Config.Threshold,
			Pin:        snap.Config.Pin,
			Transport:  snap.Config.Transport,
			GPIO:       snap.Config.GPIO,
			Broker:     snap.Config.Broker,
			HTTPAddr:   snap.Config.HTTPAddr,
		},
	}

	// LastRun is primed one interval before start until the first cycle.
	if snap.Schedule.Completed == 0 {
		inner.Schedule.LastRun = ""
	}

	if l := snap.Last; l != nil {
		inner.Last = &LastJSON{
			Run:        l.Run,
			ID:         l.ID,
			Started:    formatTime(l.Started),
			DurationMs: l.Duration.Milliseconds(),
			Outcome:    l.Outcome,
			Found:      l.Found,
			Value:      l.Value,
			Reading:    l.Reading,
			Lenient:    l.Lenient,
			Triggered:  l.Triggered,
			Written:    l.Written,
			Error:      l.Error,
		}
	}

	if n := snap.Network; n != nil {
		inner.Network = &NetworkJSON{
			Type:       n.Type,
			IP:         n.IP,
			Status:     n.Status,
			Gateway:    n.Gateway,
			WifiStatus: n.WifiStatus,
			SSID:       n.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
