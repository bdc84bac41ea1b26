// Package metrics exposes probe counters over Prometheus. It observes the
// same record stream the history store does, so the exported numbers always
// agree with what the TUI shows.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/icecake0141/paraping/internal/history"
	"github.com/icecake0141/paraping/internal/probe"
)

// Metrics holds the paraping collectors behind a private registry.
type Metrics struct {
	registry *prometheus.Registry

	probesTotal *prometheus.CounterVec
	rttSeconds  *prometheus.HistogramVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paraping",
			Name:      "probes_total",
			Help:      "Completed probes by host and outcome.",
		}, []string{"host", "outcome"}),
		rttSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paraping",
			Name:      "rtt_seconds",
			Help:      "Round-trip time of successful probes.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"host"}),
	}
	m.registry.MustRegister(m.probesTotal, m.rttSeconds)
	return m
}

// Record implements scheduler.Recorder so Metrics can sit next to the history
// store on the completion path.
func (m *Metrics) Record(rec history.Record) {
	m.probesTotal.WithLabelValues(rec.Host, rec.Outcome.Kind.String()).Inc()
	if rec.Outcome.Kind == probe.Success {
		m.rttSeconds.WithLabelValues(rec.Host).Observe(float64(rec.Outcome.RTT) / float64(time.Second))
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
