// Package metrics provides the centralized Prometheus metrics registry for
// the scene cache engine. All metrics are defined in their respective
// packages (store, admission, janitor) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the engine.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/store):
//   - scene_cache_hits_total (Counter): Confirmed cache hits
//   - scene_cache_misses_total (Counter): Lookups that found no usable entry
//   - scene_cache_entries (Gauge): Current entry count across all states
//
// Admission Metrics (pkg/admission):
//   - scene_upstream_calls_total{operation, status} (Counter): Upstream model calls
//   - scene_upstream_duration_seconds{operation} (Histogram): Upstream call duration
//   - scene_throttled_total (Counter): Frames answered from stale cache due to the call interval
//   - scene_coalesced_waiters_total (Counter): Callers attached to an in-flight call
//   - scene_invalid_frames_total (Counter): Frames rejected as undecodable
//
// Retry Metrics (pkg/admission):
//   - scene_retries_total{operation} (Counter): Upstream retry attempts
//   - scene_retry_backoff_seconds{operation} (Histogram): Backoff before retries
//   - scene_retry_exhausted_total{operation} (Counter): Calls that exhausted all retries
//
// Janitor Metrics (pkg/janitor):
//   - scene_janitor_evictions_total{reason} (Counter): Evictions by reason (idle, capacity)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(scene_cache_hits_total[5m])) /
//   (sum(rate(scene_cache_hits_total[5m])) + sum(rate(scene_cache_misses_total[5m])))
//
//   # Upstream Call Savings (hits + coalesced + throttled vs actual calls)
//   rate(scene_upstream_calls_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(scene_upstream_duration_seconds_bucket[5m]))
//
//   # Entry Count vs Cap
//   scene_cache_entries
