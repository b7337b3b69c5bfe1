package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks confirmed cache hits (Touch).
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scene_cache_hits_total",
			Help: "Total number of scene cache hits",
		},
	)

	// cacheMisses tracks lookups that found no usable entry.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scene_cache_misses_total",
			Help: "Total number of scene cache misses",
		},
	)

	// cacheEntries tracks the current entry count across all states.
	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scene_cache_entries",
			Help: "Current number of scene cache entries",
		},
	)
)
