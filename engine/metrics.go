package engine

import "time"

// MetricsObserver defines the interface for observing engine events.
type MetricsObserver interface {
	// OnAppend is called when an append completes. conflicts counts the
	// version conflicts retried along the way.
	OnAppend(duration time.Duration, conflicts int, err error)

	// OnSearch is called when a search completes.
	OnSearch(duration time.Duration, candidates, results int, err error)

	// OnConflict is called for every version conflict observed by a writer.
	OnConflict(expected uint64)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnAppend(time.Duration, int, error)     {}
func (NoopMetricsObserver) OnSearch(time.Duration, int, int, error) {}
func (NoopMetricsObserver) OnConflict(uint64)                       {}
