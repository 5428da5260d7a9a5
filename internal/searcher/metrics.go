package searcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "catalogsearch"

// Metrics holds the searcher's Prometheus collectors. A nil *Metrics is a
// valid no-op.
type Metrics struct {
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheBypass    prometheus.Counter
	cacheErrors    *prometheus.CounterVec
	backingErrors  prometheus.Counter
	backingLatency prometheus.Histogram
}

// NewMetrics creates the searcher collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_hits_total",
			Help:      "Search lookups answered from the query cache.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_misses_total",
			Help:      "Search lookups that missed the query cache.",
		}),
		cacheBypass: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_bypass_total",
			Help:      "Search lookups that skipped the query cache.",
		}),
		cacheErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_errors_total",
			Help:      "Query cache faults, by operation.",
		}, []string{"op"}),
		backingErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "backing_search_errors_total",
			Help:      "Failed backing catalog searches.",
		}),
		backingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "backing_search_duration_seconds",
			Help:      "Backing catalog search latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) hit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *Metrics) bypass() {
	if m != nil {
		m.cacheBypass.Inc()
	}
}

func (m *Metrics) cacheError(op string) {
	if m != nil {
		m.cacheErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) backing(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.backingLatency.Observe(d.Seconds())
	if err != nil {
		m.backingErrors.Inc()
	}
}
