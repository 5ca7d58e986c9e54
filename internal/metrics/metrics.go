// Package metrics exposes controller counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/temp-actuator/internal/controller"
	"github.com/sweeney/temp-actuator/internal/schedule"
)

const namespace = "temp_actuator"

// Metrics holds the controller's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	FieldErrors   prometheus.Counter
	Actuations    *prometheus.CounterVec
	LastReading   prometheus.Gauge
	RunsRemaining prometheus.Gauge
	MQTTConnected prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cycles",
				Name:      "total",
				Help:      "Completed invocation cycles by outcome (ok, timeout, incomplete, failed)",
			},
			[]string{"outcome"},
		),

		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "cycles",
				Name:      "duration_seconds",
				Help:      "Wall time of one invocation cycle",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		),

		FieldErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "decode",
				Name:      "field_errors_total",
				Help:      "Response fields dropped because they did not decode",
			},
		),

		Actuations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "actuator",
				Name:      "writes_total",
				Help:      "Pin writes triggered by the threshold rule, by result (written, failed)",
			},
			[]string{"result"},
		),

		LastReading: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "reading",
				Name:      "last",
				Help:      "Most recent decoded reading",
			},
		),

		RunsRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "schedule",
				Name:      "runs_remaining",
				Help:      "Invocations left in the lifetime budget",
			},
		),

		MQTTConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "mqtt",
				Name:      "connected",
				Help:      "1 if the MQTT connection is up",
			},
		),
	}

	m.registry.MustRegister(
		m.Cycles,
		m.CycleDuration,
		m.FieldErrors,
		m.Actuations,
		m.LastReading,
		m.RunsRemaining,
		m.MQTTConnected,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records the outcome of one cycle and the schedule after it.
func (m *Metrics) ObserveCycle(cy controller.Cycle, st schedule.State) {
	m.Cycles.WithLabelValues(cy.Outcome()).Inc()
	m.CycleDuration.Observe(cy.Duration.Seconds())
	m.FieldErrors.Add(float64(len(cy.Stats.FieldErrors)))
	if cy.Found {
		m.LastReading.Set(float64(cy.Action.Reading))
	}
	if cy.Action.Triggered {
		if cy.Action.Written {
			m.Actuations.WithLabelValues("written").Inc()
		} else {
			m.Actuations.WithLabelValues("failed").Inc()
		}
	}
	m.RunsRemaining.Set(float64(st.Remaining()))
}

// SetMQTTConnected records the MQTT connection state.
func (m *Metrics) SetMQTTConnected(connected bool) {
	if connected {
		m.MQTTConnected.Set(1)
	} else {
		m.MQTTConnected.Set(0)
	}
}
