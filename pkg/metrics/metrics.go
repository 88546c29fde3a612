package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcu_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// CacheOperations counts content cache hits and misses per key prefix.
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcu_cache_operations_total",
			Help: "Content cache lookups by outcome",
		},
		[]string{"prefix", "outcome"},
	)

	// RateLimited counts requests rejected by the sliding-window limiter.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcu_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"window"},
	)

	// BridgeQueueDepth tracks tasks waiting for a worker in the store bridge.
	BridgeQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcu_bridge_queue_depth",
			Help: "Tasks queued for the blocking-store worker pool",
		},
	)
)
