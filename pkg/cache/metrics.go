package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmgw_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"backend"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses (absent, expired or unreadable entries) by backend.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmgw_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"backend"},
	)

	// CacheEntries tracks the number of entries held by the in-process backend.
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rmgw_cache_entries",
			Help: "Current number of entries in the cache",
		},
		[]string{"backend"},
	)

	// CacheEvictions tracks entries removed because they expired.
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmgw_cache_expired_total",
			Help: "Total number of expired cache entries removed",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks absorbed backend errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmgw_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "clear", "connect"
	)
)
