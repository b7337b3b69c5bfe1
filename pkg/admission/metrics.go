package admission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for admission decisions and upstream calls.
var (
	upstreamCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_upstream_calls_total",
		Help: "Total upstream model calls by operation and status",
	}, []string{"operation", "status"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scene_upstream_duration_seconds",
		Help:    "Upstream model call duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	throttledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_throttled_total",
		Help: "Total frames answered from stale cache due to the per-session call interval",
	})

	coalescedWaitersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_coalesced_waiters_total",
		Help: "Total callers attached to an in-flight call for the same scene",
	})

	invalidFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_invalid_frames_total",
		Help: "Total frames rejected as undecodable",
	})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_retries_total",
		Help: "Total upstream retry attempts by operation",
	}, []string{"operation"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scene_retry_backoff_seconds",
		Help:    "Backoff duration before upstream retries by operation",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"operation"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_retry_exhausted_total",
		Help: "Total upstream calls that exhausted all retry attempts by operation",
	}, []string{"operation"})
)
