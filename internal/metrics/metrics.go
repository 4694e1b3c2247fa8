// Package metrics exposes Prometheus instrumentation for the cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts requests served from an existing entry.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepsearch_cache_hits_total",
		Help: "Generate/lookup requests served from the cache.",
	})

	// CacheMisses counts requests that found no entry.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepsearch_cache_misses_total",
		Help: "Generate/lookup requests that missed the cache.",
	})

	// Generations counts calls actually issued to the external generator.
	Generations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepsearch_generations_total",
		Help: "Calls issued to the external generator.",
	})

	// GenerationErrors counts failed generator calls.
	GenerationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepsearch_generation_errors_total",
		Help: "External generator calls that returned an error.",
	})

	// FlightJoins counts callers that attached to an in-flight generation
	// instead of triggering their own.
	FlightJoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepsearch_singleflight_joins_total",
		Help: "Callers that joined an in-flight generation.",
	})

	// StatsRebuilds counts full aggregator rebuilds from the store.
	StatsRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepsearch_stats_rebuilds_total",
		Help: "Full statistics rebuilds triggered at boot or after an inconsistency.",
	})

	// PrunedEntries counts entries removed by the retention policy.
	PrunedEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepsearch_pruned_entries_total",
		Help: "Cache entries removed by retention pruning.",
	})

	// GenerationDuration observes external generator latency.
	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "deepsearch_generation_duration_seconds",
		Help:    "Latency of external generator calls.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
