// Package metrics holds the Prometheus collectors for collection evaluation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the application collectors on one registry.
type Metrics struct {
	registry *prometheus.Registry

	Evaluations       *prometheus.CounterVec
	EvaluationLatency prometheus.Histogram
	FilterCache       *prometheus.CounterVec
	SnapshotCards     prometheus.Gauge
	SnapshotRebuilds  prometheus.Counter
	ReferenceEdits    *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardweb_collection_evaluations_total",
			Help: "Collections evaluated, by base set and fallback use",
		}, []string{"set", "fallback"}),

		EvaluationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardweb_collection_evaluation_duration_seconds",
			Help:    "Collection evaluation latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		// result: "hit" or "miss"
		FilterCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardweb_filter_cache_total",
			Help: "Filter memo lookups by result",
		}, []string{"result"}),

		SnapshotCards: f.NewGauge(prometheus.GaugeOpts{
			Name: "cardweb_snapshot_cards",
			Help: "Number of cards in the stable snapshot",
		}),

		SnapshotRebuilds: f.NewCounter(prometheus.CounterOpts{
			Name: "cardweb_snapshot_rebuilds_total",
			Help: "Snapshots published to the store",
		}),

		// outcome: "applied", "rejected" or "noop"
		ReferenceEdits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardweb_reference_edits_total",
			Help: "Reference mutations by outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordEvaluation records one collection evaluation.
func (m *Metrics) RecordEvaluation(set string, fallback bool, took time.Duration) {
	fb := "false"
	if fallback {
		fb = "true"
	}
	m.Evaluations.WithLabelValues(set, fb).Inc()
	m.EvaluationLatency.Observe(took.Seconds())
}

// RecordFilterCache adds the hit/miss deltas of one evaluation.
func (m *Metrics) RecordFilterCache(hits, misses uint64) {
	m.FilterCache.WithLabelValues("hit").Add(float64(hits))
	m.FilterCache.WithLabelValues("miss").Add(float64(misses))
}

// RecordSnapshot records a newly published snapshot.
func (m *Metrics) RecordSnapshot(cards int) {
	m.SnapshotRebuilds.Inc()
	m.SnapshotCards.Set(float64(cards))
}

// RecordReferenceEdit records the outcome of a reference mutation.
func (m *Metrics) RecordReferenceEdit(outcome string) {
	m.ReferenceEdits.WithLabelValues(outcome).Inc()
}
