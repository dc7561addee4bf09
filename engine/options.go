package engine

import (
	"log/slog"
	"time"

	"github.com/hupe1980/ccvec/blobstore"
	"github.com/hupe1980/ccvec/codec"
	"github.com/hupe1980/ccvec/distance"
	"github.com/hupe1980/ccvec/embedding"
	"github.com/hupe1980/ccvec/index"
	"github.com/hupe1980/ccvec/index/flat"
	"github.com/hupe1980/ccvec/index/hnsw"
	"github.com/hupe1980/ccvec/internal/compress"
)

// IndexFactory creates an empty index of the given dimension.
type IndexFactory func(dimension int) (index.Index, error)

// FlatIndex returns a factory for exact flat indexes.
func FlatIndex(metric distance.Metric) IndexFactory {
	return func(dimension int) (index.Index, error) {
		return flat.New(dimension, func(o *flat.Options) {
			o.Metric = metric
		})
	}
}

// HNSWIndex returns a factory for HNSW graphs.
func HNSWIndex(optFns ...func(o *hnsw.Options)) IndexFactory {
	return func(dimension int) (index.Index, error) {
		return hnsw.New(dimension, optFns...)
	}
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// NewIndex creates the index returned when nothing is committed yet.
	// Defaults to an exact squared-L2 flat index.
	NewIndex IndexFactory

	// Compression is applied to index blobs.
	Compression compress.Type

	// Codec encodes id tables and manifests.
	Codec codec.Codec

	// Prefix is prepended to index and table blob keys.
	Prefix string

	Logger *slog.Logger
}

// DefaultStoreOptions contains the default configuration options for a Store.
var DefaultStoreOptions = StoreOptions{
	NewIndex:    FlatIndex(distance.MetricL2),
	Compression: compress.None,
	Codec:       codec.Default,
	Prefix:      "faiss/",
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	// Locker serializes load-mutate-save across writers. Optional.
	Locker blobstore.Locker

	// MaxRetries bounds the number of conflict retries per append.
	MaxRetries uint64

	// InitialBackoff and MaxBackoff shape the exponential retry delay.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// StoreRawVectors writes embeddings/<id>.vec once the insertion is
	// committed.
	StoreRawVectors bool

	// Normalize L2-normalizes vectors before insertion.
	Normalize bool

	// OnConflict is called for every version conflict. attempt starts at 1.
	OnConflict func(id string, attempt int, err error)

	Metrics MetricsObserver
	Logger  *slog.Logger
}

// DefaultWriterOptions contains the default configuration options for a Writer.
var DefaultWriterOptions = WriterOptions{
	MaxRetries:     10,
	InitialBackoff: 10 * time.Millisecond,
	MaxBackoff:     time.Second,
}

// Oversample is the default neighbor multiplier compensating for filtering.
const Oversample = 3

// SearchOptions configures a Searcher.
type SearchOptions struct {
	// Oversample multiplies k to size the candidate window.
	Oversample int

	// Concurrency bounds parallel metadata lookups.
	Concurrency int

	// MaxQueryChars truncates query text before embedding. Zero disables it.
	MaxQueryChars int

	Metrics MetricsObserver
	Logger  *slog.Logger
}

// DefaultSearchOptions contains the default configuration options for a Searcher.
var DefaultSearchOptions = SearchOptions{
	Oversample:    Oversample,
	Concurrency:   8,
	MaxQueryChars: embedding.MaxInputChars,
}

func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}

func metricsOrNoop(m MetricsObserver) MetricsObserver {
	if m == nil {
		return NoopMetricsObserver{}
	}
	return m
}
