// Package metrics exposes Prometheus counters for dictation cycles.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dictate/dictation"
	"dictate/status"
)

const namespace = "dictate"

type Metrics struct {
	registry *prometheus.Registry

	Cycles          *prometheus.CounterVec
	StageSeconds    *prometheus.HistogramVec
	GesturesDropped prometheus.Counter
	Tokens          prometheus.Counter
	Status          *prometheus.GaugeVec

	// Event publishing
	PublishTotal   *prometheus.CounterVec
	PublishErrors  *prometheus.CounterVec
	PublishLatency prometheus.Histogram
}

// New registers every metric on a fresh registry, so tests can build as
// many as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Dictation cycles by outcome",
		}, []string{"outcome"}),
		StageSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage"}),
		GesturesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gestures_dropped_total",
			Help:      "Hotkey holds ignored because a cycle was still running",
		}),
		Tokens: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Formatted tokens forwarded to the keyboard",
		}),
		Status: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "status",
			Help:      "1 for the current pipeline status, 0 otherwise",
		}, []string{"status"}),
		PublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Transcript events published",
		}, []string{"topic"}),
		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Transcript events that failed to publish",
		}, []string{"topic"}),
		PublishLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_latency_seconds",
			Help:      "Event publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// Handler serves this registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }

// RecordOutcome is an orchestrator outcome hook.
func (m *Metrics) RecordOutcome(out dictation.Outcome) {
	m.Cycles.WithLabelValues(out.Kind.String()).Inc()
	m.StageSeconds.WithLabelValues("audio").Observe(out.Audio.Seconds())
	if out.Transcribe > 0 {
		m.StageSeconds.WithLabelValues("transcribe").Observe(out.Transcribe.Seconds())
	}
	if out.Format > 0 {
		m.StageSeconds.WithLabelValues("format").Observe(out.Format.Seconds())
	}
	if out.Total > 0 {
		m.StageSeconds.WithLabelValues("total").Observe(out.Total.Seconds())
	}
	m.Tokens.Add(float64(out.Tokens))
}

// RecordDrop is an orchestrator drop hook.
func (m *Metrics) RecordDrop(status.Status) {
	m.GesturesDropped.Inc()
}

// RecordPublish records one event publish attempt.
func (m *Metrics) RecordPublish(topic string, err error, latencySeconds float64) {
	m.PublishTotal.WithLabelValues(topic).Inc()
	m.PublishLatency.Observe(latencySeconds)
	if err != nil {
		m.PublishErrors.WithLabelValues(topic).Inc()
	}
}

// Observe implements status.Observer and tracks the current status gauge.
func (m *Metrics) Observe(ev status.Event) {
	if ev.Kind != status.StatusChanged {
		return
	}
	for _, st := range []status.Status{status.Idle, status.Recording, status.Transcribing, status.Formatting} {
		v := 0.0
		if st == ev.Snapshot.Status {
			v = 1
		}
		m.Status.WithLabelValues(string(st)).Set(v)
	}
}
