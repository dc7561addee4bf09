package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ccvec/embedding"
	"github.com/hupe1980/ccvec/index"
	"github.com/hupe1980/ccvec/model"
)

// Searcher answers k-NN queries with metadata post-filtering.
type Searcher struct {
	store    *Store
	embedder Embedder
	meta     MetadataStore
	opts     SearchOptions
	metrics  MetricsObserver
	logger   *slog.Logger
}

// NewSearcher creates a Searcher.
func NewSearcher(store *Store, embedder Embedder, meta MetadataStore, optFns ...func(o *SearchOptions)) *Searcher {
	opts := DefaultSearchOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Oversample = max(opts.Oversample, 1)
	opts.Concurrency = max(opts.Concurrency, 1)

	return &Searcher{
		store:    store,
		embedder: embedder,
		meta:     meta,
		opts:     opts,
		metrics:  metricsOrNoop(opts.Metrics),
		logger:   loggerOrDiscard(opts.Logger),
	}
}

// embedQuery validates k and embeds text.
func embedQuery(ctx context.Context, e Embedder, text string, k, maxChars int) (model.Vector, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if e == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrEmbeddingUnavailable)
	}
	if maxChars > 0 {
		text = embedding.Truncate(text, maxChars)
	}
	vec, err := e.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

// Search embeds query and returns up to k results matching filters.
func (s *Searcher) Search(ctx context.Context, query string, k int, filters model.FilterSet) ([]model.SearchResult, error) {
	vec, err := embedQuery(ctx, s.embedder, query, k, s.opts.MaxQueryChars)
	if err != nil {
		s.metrics.OnSearch(0, 0, 0, err)
		return nil, err
	}
	return s.SearchVector(ctx, vec, k, filters)
}

// SearchVector returns up to k results for a precomputed query vector.
//
// Results keep the index order: non-increasing similarity, ties by insertion
// order.
func (s *Searcher) SearchVector(ctx context.Context, vector model.Vector, k int, filters model.FilterSet) (results []model.SearchResult, err error) {
	start := time.Now()
	candidates := 0
	defer func() {
		s.metrics.OnSearch(time.Since(start), candidates, len(results), err)
	}()

	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}

	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Index.Len() == 0 {
		return []model.SearchResult{}, nil
	}
	if len(vector) != snap.Index.Dimension() {
		return nil, &ErrDimensionMismatch{Expected: snap.Index.Dimension(), Actual: len(vector)}
	}

	neighbors, err := snap.Index.Search(vector, window(k, s.opts.Oversample, snap.Index.Len()))
	if err != nil {
		return nil, fmt.Errorf("engine: index search: %w", err)
	}
	candidates = len(neighbors)

	return resolve(ctx, resolver{
		meta:        s.meta,
		concurrency: s.opts.Concurrency,
		logger:      s.logger,
	}, snap, neighbors, k, filters)
}

// window returns min(k*oversample, n) without overflowing.
func window(k, oversample, n int) int {
	if k > n/oversample {
		return n
	}
	return min(k*oversample, n)
}

type resolver struct {
	meta        MetadataStore
	concurrency int
	logger      *slog.Logger
}

// resolve maps neighbors to ids, fetches metadata concurrently, filters and
// truncates to k. Per-candidate failures drop the candidate.
func resolve(ctx context.Context, r resolver, snap *Snapshot, neighbors []index.Neighbor, k int, filters model.FilterSet) ([]model.SearchResult, error) {
	scale := snap.Index.Scale()
	slots := make([]*model.SearchResult, len(neighbors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, nb := range neighbors {
		if int(nb.Position) >= len(snap.Table) {
			r.logger.Debug("skipping stale position", "position", nb.Position, "table", len(snap.Table))
			continue
		}
		id := snap.Table[nb.Position]

		g.Go(func() error {
			m, err := lookup(gctx, r.meta, id)
			if err != nil {
				r.logger.Debug("skipping candidate", "id", id, "error", err)
				return nil
			}
			if !filters.Match(m) {
				return nil
			}
			slots[i] = &model.SearchResult{
				ID:         id,
				Score:      nb.Score,
				Similarity: scale.Similarity(nb.Score),
				Scale:      scale,
				Metadata:   m,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]model.SearchResult, 0, min(k, len(neighbors)))
	for _, res := range slots {
		if res == nil {
			continue
		}
		results = append(results, *res)
		if len(results) == k {
			break
		}
	}
	return results, nil
}

func lookup(ctx context.Context, meta MetadataStore, id model.RecordID) (model.Metadata, error) {
	if meta == nil {
		return model.Metadata{ID: id}, nil
	}
	m, ok, err := meta.Get(ctx, id)
	if err != nil {
		return model.Metadata{}, fmt.Errorf("%w: %s: %w", ErrMetadataMissing, id, err)
	}
	if !ok {
		return model.Metadata{}, fmt.Errorf("%w: %s", ErrMetadataMissing, id)
	}
	if m.ID == "" {
		m.ID = id
	}
	return m, nil
}

// ANN pairs a Writer and a Searcher over one Store.
type ANN struct {
	*Writer
	*Searcher

	store *Store
}

// Compile time check to ensure ANN satisfies the Backend interface.
var _ Backend = (*ANN)(nil)

// NewANN wires a Writer and a Searcher over store.
func NewANN(store *Store, w *Writer, s *Searcher) *ANN {
	return &ANN{Writer: w, Searcher: s, store: store}
}

// Stats implements Backend.
func (a *ANN) Stats(ctx context.Context) (Stats, error) {
	return a.store.Stats(ctx)
}

// IsCorrupt reports whether err signals an unreadable persisted pair.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrIndexCorrupt)
}
