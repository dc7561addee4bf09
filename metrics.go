package ccvec

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/ccvec/engine"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems.
type MetricsCollector interface {
	// RecordAppend is called after each append. conflicts counts the lost
	// commit races retried along the way, err is nil if successful.
	RecordAppend(duration time.Duration, conflicts int, err error)

	// RecordSearch is called after each search. candidates is the number of
	// neighbors fetched from the index, results the number returned.
	RecordSearch(candidates, results int, duration time.Duration, err error)

	// RecordConflict is called for every version conflict.
	RecordConflict()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAppend(time.Duration, int, error)      {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordConflict()                             {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AppendCount      atomic.Int64
	AppendErrors     atomic.Int64
	AppendTotalNanos atomic.Int64
	ConflictCount    atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	SearchCandidates atomic.Int64
	SearchResults    atomic.Int64
}

// RecordAppend implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAppend(duration time.Duration, _ int, err error) {
	b.AppendCount.Add(1)
	b.AppendTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AppendErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(candidates, results int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.SearchCandidates.Add(int64(candidates))
	b.SearchResults.Add(int64(results))
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordConflict implements MetricsCollector.
func (b *BasicMetricsCollector) RecordConflict() {
	b.ConflictCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AppendCount:      b.AppendCount.Load(),
		AppendErrors:     b.AppendErrors.Load(),
		AppendAvgNanos:   avg(b.AppendTotalNanos.Load(), b.AppendCount.Load()),
		ConflictCount:    b.ConflictCount.Load(),
		SearchCount:      b.SearchCount.Load(),
		SearchErrors:     b.SearchErrors.Load(),
		SearchAvgNanos:   avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		SearchCandidates: b.SearchCandidates.Load(),
		SearchResults:    b.SearchResults.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AppendCount      int64
	AppendErrors     int64
	AppendAvgNanos   int64
	ConflictCount    int64
	SearchCount      int64
	SearchErrors     int64
	SearchAvgNanos   int64
	SearchCandidates int64
	SearchResults    int64
}

// PrometheusCollector exports metrics through prometheus/client_golang.
type PrometheusCollector struct {
	appends        *prometheus.CounterVec
	appendDuration prometheus.Histogram
	conflicts      prometheus.Counter
	searches       *prometheus.CounterVec
	searchDuration prometheus.Histogram
	candidates     prometheus.Histogram
	results        prometheus.Histogram
}

// NewPrometheusCollector creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer, namespace string) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &PrometheusCollector{
		appends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appends_total",
			Help:      "Appends by outcome.",
		}, []string{"result"}),
		appendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "append_duration_seconds",
			Help:      "Append latency including conflict retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_conflicts_total",
			Help:      "Commits that lost a compare-and-swap race.",
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches by outcome.",
		}, []string{"result"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search latency including embedding and metadata lookups.",
			Buckets:   prometheus.DefBuckets,
		}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_candidates",
			Help:      "Neighbors fetched from the index per search.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		results: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Results returned per search after filtering.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	for _, c := range []prometheus.Collector{
		p.appends, p.appendDuration, p.conflicts,
		p.searches, p.searchDuration, p.candidates, p.results,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordAppend implements MetricsCollector.
func (p *PrometheusCollector) RecordAppend(duration time.Duration, _ int, err error) {
	p.appends.WithLabelValues(outcome(err)).Inc()
	p.appendDuration.Observe(duration.Seconds())
}

// RecordSearch implements MetricsCollector.
func (p *PrometheusCollector) RecordSearch(candidates, results int, duration time.Duration, err error) {
	p.searches.WithLabelValues(outcome(err)).Inc()
	p.searchDuration.Observe(duration.Seconds())
	if err == nil {
		p.candidates.Observe(float64(candidates))
		p.results.Observe(float64(results))
	}
}

// RecordConflict implements MetricsCollector.
func (p *PrometheusCollector) RecordConflict() {
	p.conflicts.Inc()
}

// observer forwards engine events to a MetricsCollector.
type observer struct {
	mc MetricsCollector
}

var _ engine.MetricsObserver = observer{}

func (o observer) OnAppend(d time.Duration, conflicts int, err error) {
	o.mc.RecordAppend(d, conflicts, err)
}

func (o observer) OnSearch(d time.Duration, candidates, results int, err error) {
	o.mc.RecordSearch(candidates, results, d, err)
}

func (o observer) OnConflict(uint64) {
	o.mc.RecordConflict()
}
