package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts dataset cache lookups.
type Metrics struct {
	Hits   prometheus.Counter
	Misses prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Hits: f.NewCounter(prometheus.CounterOpts{
			Name: "cscx_dataset_cache_hits_total",
			Help: "Dataset fetches served from the cache",
		}),
		Misses: f.NewCounter(prometheus.CounterOpts{
			Name: "cscx_dataset_cache_misses_total",
			Help: "Dataset fetches that missed the cache",
		}),
	}
}

func (m *Metrics) IncHit() {
	if m == nil {
		return
	}
	m.Hits.Inc()
}

func (m *Metrics) IncMiss() {
	if m == nil {
		return
	}
	m.Misses.Inc()
}
