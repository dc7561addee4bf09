package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/ccvec/blobstore"
	"github.com/hupe1980/ccvec/distance"
	"github.com/hupe1980/ccvec/index"
	"github.com/hupe1980/ccvec/model"
)

// BruteForceOptions configures a BruteForce backend.
type BruteForceOptions struct {
	Writer []func(o *WriterOptions)
	Search []func(o *SearchOptions)
	Store  []func(o *StoreOptions)
}

// BruteForce is an exhaustive cosine-similarity backend.
//
// Raw vectors are kept in insertion order in a cosine flat index persisted
// with the same versioned protocol as the ANN path. Every query scores every
// stored vector, so cost grows with count times dimension.
type BruteForce struct {
	store   *Store
	writer  *Writer
	opts    SearchOptions
	embed   Embedder
	meta    MetadataStore
	metrics MetricsObserver
	logger  *slog.Logger
}

// Compile time check to ensure BruteForce satisfies the Backend interface.
var _ Backend = (*BruteForce)(nil)

// NewBruteForce creates a brute-force backend. Index and table blobs live
// under the "vectors/" prefix unless overridden.
func NewBruteForce(blobs blobstore.BlobStore, commits blobstore.CommitStore, dimension int, embedder Embedder, meta MetadataStore, optFns ...func(o *BruteForceOptions)) (*BruteForce, error) {
	var bo BruteForceOptions
	for _, fn := range optFns {
		fn(&bo)
	}

	storeOpts := append([]func(o *StoreOptions){func(o *StoreOptions) {
		o.Prefix = "vectors/"
	}}, bo.Store...)
	// The cosine flat index is not negotiable.
	storeOpts = append(storeOpts, func(o *StoreOptions) {
		o.NewIndex = FlatIndex(distance.MetricCosine)
	})

	store, err := NewStore(blobs, commits, dimension, storeOpts...)
	if err != nil {
		return nil, err
	}

	opts := DefaultSearchOptions
	for _, fn := range bo.Search {
		fn(&opts)
	}
	opts.Concurrency = max(opts.Concurrency, 1)

	return &BruteForce{
		store:   store,
		writer:  NewWriter(store, bo.Writer...),
		opts:    opts,
		embed:   embedder,
		meta:    meta,
		metrics: metricsOrNoop(opts.Metrics),
		logger:  loggerOrDiscard(opts.Logger),
	}, nil
}

// Store returns the underlying store.
func (b *BruteForce) Store() *Store { return b.store }

// Append stores vector under id.
func (b *BruteForce) Append(ctx context.Context, id model.RecordID, vector model.Vector) error {
	return b.writer.Append(ctx, id, vector)
}

// Search embeds query and scans every stored vector.
func (b *BruteForce) Search(ctx context.Context, query string, k int, filters model.FilterSet) ([]model.SearchResult, error) {
	vec, err := embedQuery(ctx, b.embed, query, k, b.opts.MaxQueryChars)
	if err != nil {
		b.metrics.OnSearch(0, 0, 0, err)
		return nil, err
	}
	return b.SearchVector(ctx, vec, k, filters)
}

// SearchVector ranks every stored vector by cosine similarity, filters the
// full ranking and truncates to k.
func (b *BruteForce) SearchVector(ctx context.Context, vector model.Vector, k int, filters model.FilterSet) (results []model.SearchResult, err error) {
	start := time.Now()
	candidates := 0
	defer func() {
		b.metrics.OnSearch(time.Since(start), candidates, len(results), err)
	}()

	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}

	snap, err := b.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Index.Kind() != index.KindFlat || snap.Index.Scale() != model.ScaleCosine {
		return nil, fmt.Errorf("engine: brute force requires a cosine flat index, found %s/%s", snap.Index.Kind(), snap.Index.Scale())
	}
	if snap.Index.Len() == 0 {
		return []model.SearchResult{}, nil
	}
	if len(vector) != snap.Index.Dimension() {
		return nil, &ErrDimensionMismatch{Expected: snap.Index.Dimension(), Actual: len(vector)}
	}

	ranked, err := snap.Index.Search(vector, snap.Index.Len())
	if err != nil {
		return nil, fmt.Errorf("engine: scan: %w", err)
	}
	candidates = len(ranked)

	return resolve(ctx, resolver{
		meta:        b.meta,
		concurrency: b.opts.Concurrency,
		logger:      b.logger,
	}, snap, ranked, k, filters)
}

// Stats implements Backend.
func (b *BruteForce) Stats(ctx context.Context) (Stats, error) {
	return b.store.Stats(ctx)
}
