package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Shared tier metrics. The layer label is "redis".
var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_cache_hits_total",
		Help: "Shared tier lookups answered from Redis",
	}, []string{"layer"})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "travel_cache_misses_total",
		Help: "Shared tier lookups that found no live entry",
	})

	CacheWriteBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_cache_writes_bytes_total",
		Help: "Encoded entry bytes written to the shared tier",
	}, []string{"layer"})

	// CacheErrors is labelled by operation: get, set or delete.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_cache_errors_total",
		Help: "Shared tier operations that failed",
	}, []string{"operation"})
)
