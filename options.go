package ccvec

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/ccvec/blobstore"
	"github.com/hupe1980/ccvec/engine"
	"github.com/hupe1980/ccvec/index/hnsw"
	"github.com/hupe1980/ccvec/internal/compress"
)

// BackendKind selects the search backend of a DB.
type BackendKind string

const (
	// BackendANN is the oversampled nearest-neighbor backend (squared L2).
	BackendANN BackendKind = "ann"
	// BackendBruteForce is the exhaustive cosine backend.
	BackendBruteForce BackendKind = "bruteforce"
)

// ParseBackendKind parses a backend name.
func ParseBackendKind(s string) (BackendKind, error) {
	switch k := BackendKind(s); k {
	case BackendANN, BackendBruteForce:
		return k, nil
	case "":
		return BackendANN, nil
	default:
		return "", fmt.Errorf("unknown backend %q", s)
	}
}

type options struct {
	backend          BackendKind
	newIndex         engine.IndexFactory
	compression      compress.Type
	prefix           string
	locker           blobstore.Locker
	maxRetries       uint64
	initialBackoff   time.Duration
	maxBackoff       time.Duration
	rawVectors       bool
	normalize        bool
	oversample       int
	concurrency      int
	metricsCollector MetricsCollector
	logger           *Logger
	err              error
}

// Option configures Open.
type Option func(*options)

// WithBackend selects the search backend. The default is BackendANN.
func WithBackend(kind BackendKind) Option {
	return func(o *options) {
		o.backend = kind
	}
}

// WithHNSW makes the ANN backend use an HNSW graph instead of the exact flat
// index. It has no effect on BackendBruteForce.
//
// Example:
//
//	db, _ := ccvec.Open(blobs, commits, 768, emb, meta,
//	    ccvec.WithHNSW(func(o *hnsw.Options) {
//	        o.M = 32
//	        o.EFSearch = 128
//	    }),
//	)
func WithHNSW(optFns ...func(o *hnsw.Options)) Option {
	return func(o *options) {
		o.newIndex = engine.HNSWIndex(optFns...)
	}
}

// WithCompression compresses index blobs with the named algorithm
// ("none", "lz4" or "zstd"). Open fails for unknown names.
func WithCompression(name string) Option {
	return func(o *options) {
		t, err := compress.Parse(name)
		if err != nil {
			o.err = err
			return
		}
		o.compression = t
	}
}

// WithPrefix overrides the key prefix of index and table blobs.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithLocker serializes appends through l before they reach the commit
// store. Correctness does not depend on it; it only makes conflicts rare.
func WithLocker(l blobstore.Locker) Option {
	return func(o *options) {
		o.locker = l
	}
}

// WithRetry bounds conflict retries and shapes their exponential backoff.
func WithRetry(maxRetries uint64, initial, maxInterval time.Duration) Option {
	return func(o *options) {
		o.maxRetries = maxRetries
		o.initialBackoff = initial
		o.maxBackoff = maxInterval
	}
}

// WithRawVectors writes embeddings/<id>.vec next to the index for every
// appended record.
func WithRawVectors(enabled bool) Option {
	return func(o *options) {
		o.rawVectors = enabled
	}
}

// WithNormalize L2-normalizes vectors before they are indexed.
func WithNormalize(enabled bool) Option {
	return func(o *options) {
		o.normalize = enabled
	}
}

// WithOversample sets the candidate multiplier of the ANN backend.
func WithOversample(n int) Option {
	return func(o *options) {
		o.oversample = n
	}
}

// WithConcurrency bounds parallel metadata lookups per search.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &ccvec.BasicMetricsCollector{}
//	db, _ := ccvec.Open(blobs, commits, 768, emb, meta, ccvec.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Appends: %d, conflicts: %d\n", stats.AppendCount, stats.ConflictCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		backend:          BackendANN,
		compression:      engine.DefaultStoreOptions.Compression,
		maxRetries:       engine.DefaultWriterOptions.MaxRetries,
		initialBackoff:   engine.DefaultWriterOptions.InitialBackoff,
		maxBackoff:       engine.DefaultWriterOptions.MaxBackoff,
		oversample:       engine.DefaultSearchOptions.Oversample,
		concurrency:      engine.DefaultSearchOptions.Concurrency,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
