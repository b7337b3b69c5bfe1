package janitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// evictionsTotal tracks evicted entries by reason ("idle", "capacity").
	evictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_janitor_evictions_total",
			Help: "Total cache entries evicted by the janitor",
		},
		[]string{"reason"},
	)
)
