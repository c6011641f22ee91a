package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the search module.
type Metrics struct {
	// Dataset fetch latency by category
	FetchLatency *prometheus.HistogramVec

	// Dataset fetch failures by category and failure reason
	FetchFailures *prometheus.CounterVec

	// Whole search latency, fan-out through join
	SearchLatency prometheus.Histogram

	// Number of qualifying entities per completed search
	ResultSize prometheus.Histogram

	// Searches replaced by a newer search in the same session
	Superseded prometheus.Counter

	// Live explorer sessions
	Sessions prometheus.Gauge
}

// New registers the search metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		FetchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cscx_search_fetch_duration_seconds",
			Help:    "Duration of dataset fetches by category",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"category"}),

		FetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cscx_search_fetch_failures_total",
			Help: "Dataset fetch failures by category and reason",
		}, []string{"category", "reason"}),

		SearchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cscx_search_duration_seconds",
			Help:    "Duration of a full search including all dataset fetches",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		ResultSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cscx_search_result_records",
			Help:    "Number of colleges matching every criterion",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),

		Superseded: f.NewCounter(prometheus.CounterOpts{
			Name: "cscx_search_superseded_total",
			Help: "Searches discarded because a newer search started in the same session",
		}),

		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "cscx_search_sessions",
			Help: "Explorer sessions currently held in memory",
		}),
	}
}

func (m *Metrics) ObserveFetchLatency(category string, d time.Duration) {
	if m != nil {
		m.FetchLatency.WithLabelValues(category).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementFetchFailure(category, reason string) {
	if m != nil {
		m.FetchFailures.WithLabelValues(category, reason).Inc()
	}
}

func (m *Metrics) ObserveSearch(d time.Duration, records int) {
	if m != nil {
		m.SearchLatency.Observe(d.Seconds())
		m.ResultSize.Observe(float64(records))
	}
}

func (m *Metrics) IncrementSuperseded() {
	if m != nil {
		m.Superseded.Inc()
	}
}

func (m *Metrics) SetSessions(n int) {
	if m != nil {
		m.Sessions.Set(float64(n))
	}
}
