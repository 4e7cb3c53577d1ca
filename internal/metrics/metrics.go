// Package metrics exports scheduler activity and telemetry to Prometheus.
package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/telemetry"
)

// Metrics holds the scheduler collectors and the registry they are exported from.
type Metrics struct {
	Steps       *prometheus.CounterVec
	Waits       *prometheus.HistogramVec
	Transitions *prometheus.CounterVec
	Errors      *prometheus.CounterVec
	Active      *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadence_steps_total",
				Help: "Total number of suspension points reached",
			},
			[]string{"procedure"},
		),
		Waits: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cadence_wait_seconds",
				Help:    "Duration of wait directives",
				Buckets: prometheus.ExponentialBuckets(1, 4, 9),
			},
			[]string{"procedure"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadence_transitions_total",
				Help: "Total number of procedure changes",
			},
			[]string{"from", "to", "reason"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadence_errors_total",
				Help: "Total number of failed runs and scheduler halts",
			},
			[]string{"procedure", "fatal"},
		),
		Active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cadence_active_procedure",
				Help: "1 for the running procedure, 0 otherwise",
			},
			[]string{"procedure"},
		),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.Steps, m.Waits, m.Transitions, m.Errors, m.Active)
	return m
}

// Hooks returns lifecycle hooks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStep: func(ctx context.Context, e *domain.StepEvent) {
			m.Steps.WithLabelValues(e.Progress.Procedure).Inc()
		},
		OnWait: func(ctx context.Context, e *domain.WaitEvent) {
			m.Waits.WithLabelValues(e.Procedure).Observe(e.Duration.Seconds())
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(e.From, e.To, string(e.Reason)).Inc()
			if e.From != "" {
				m.Active.WithLabelValues(e.From).Set(0)
			}
			if e.To != "" {
				m.Active.WithLabelValues(e.To).Set(1)
			}
		},
		OnError: func(ctx context.Context, e *domain.ErrorEvent) {
			m.Errors.WithLabelValues(e.Procedure, strconv.FormatBool(e.Fatal)).Inc()
		},
	}
}

// Register adds extra collectors to the exported registry.
func (m *Metrics) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var telemetryDesc = prometheus.NewDesc(
	"cadence_telemetry_value",
	"Latest value of a numeric telemetry channel",
	[]string{"channel"}, nil,
)

// TelemetryCollector exports the latest numeric readings of src at scrape time.
// Unknown (NaN) readings are skipped.
type TelemetryCollector struct {
	src telemetry.Source
}

func NewTelemetryCollector(src telemetry.Source) *TelemetryCollector {
	return &TelemetryCollector{src: src}
}

func (c *TelemetryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- telemetryDesc
}

func (c *TelemetryCollector) Collect(ch chan<- prometheus.Metric) {
	for name, v := range c.src.Latest().Values {
		if math.IsNaN(v) {
			continue
		}
		ch <- prometheus.MustNewConstMetric(telemetryDesc, prometheus.GaugeValue, v, name)
	}
}
