// Package metrics exposes Prometheus instrumentation for the identification
// pipeline: cache efficiency, index search latency, escalation traffic, and
// safety corrections.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dishscan_cache_hits_total",
			Help: "Total number of result cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dishscan_cache_misses_total",
			Help: "Total number of result cache misses",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dishscan_cache_entries",
			Help: "Current number of cached identification results",
		},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dishscan_index_search_duration_seconds",
			Help:    "Duration of visual index top-k searches",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	EmbedDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dishscan_embed_duration_seconds",
			Help:    "Duration of embedding provider calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	EmbedFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dishscan_embed_failures_total",
			Help: "Total number of failed embedding provider calls (after retry)",
		},
	)

	Identifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dishscan_identifications_total",
			Help: "Total number of identification requests by outcome source and confidence tier",
		},
		[]string{"source", "tier"},
	)

	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dishscan_escalations_total",
			Help: "Total number of escalations to the external recognizer by result",
		},
		[]string{"result"}, // "ok", "error", "open"
	)

	SafetyCorrections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dishscan_safety_corrections_total",
			Help: "Total number of category corrections applied by the safety validator",
		},
		[]string{"corrected_to"},
	)

	IndexEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dishscan_index_entries",
			Help: "Number of embedding rows in the serving visual index",
		},
	)

	IndexDishes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dishscan_index_dishes",
			Help: "Number of distinct dishes in the serving visual index",
		},
	)
)
