package ccvec

import (
	"context"
	"sync/atomic"

	"github.com/hupe1980/ccvec/blobstore"
	"github.com/hupe1980/ccvec/engine"
	"github.com/hupe1980/ccvec/model"
)

// Stats describes the latest committed index state.
type Stats = engine.Stats

// PruneResult reports what Prune removed.
type PruneResult = engine.PruneResult

// DB is a persistent transcript vector index with similarity search.
//
// A DB holds no in-memory index state between calls: every Append and
// Search reads the latest commit. Several DB instances, in one process or
// many, may share the same blob and commit stores.
type DB struct {
	backend   engine.Backend
	store     *engine.Store
	backendID BackendKind
	dimension int
	metrics   MetricsCollector
	logger    *Logger
	closed    atomic.Bool
}

// Open creates a DB over the given stores. embedder and meta may be nil; a
// nil embedder makes Search fail with ErrEmbeddingUnavailable and a nil
// metadata store returns results without attributes.
func Open(blobs blobstore.BlobStore, commits blobstore.CommitStore, dimension int, embedder engine.Embedder, meta engine.MetadataStore, optFns ...Option) (*DB, error) {
	if dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}

	o := applyOptions(optFns)
	if o.err != nil {
		return nil, o.err
	}
	if _, err := ParseBackendKind(string(o.backend)); err != nil {
		return nil, err
	}

	db := &DB{
		backendID: o.backend,
		dimension: dimension,
		metrics:   o.metricsCollector,
		logger:    o.logger,
	}
	obs := observer{mc: o.metricsCollector}

	storeOpts := func(so *engine.StoreOptions) {
		so.Compression = o.compression
		if o.prefix != "" {
			so.Prefix = o.prefix
		}
		if o.newIndex != nil {
			so.NewIndex = o.newIndex
		}
		so.Logger = o.logger.Logger
	}
	writerOpts := func(wo *engine.WriterOptions) {
		wo.Locker = o.locker
		wo.MaxRetries = o.maxRetries
		wo.InitialBackoff = o.initialBackoff
		wo.MaxBackoff = o.maxBackoff
		wo.StoreRawVectors = o.rawVectors
		wo.Normalize = o.normalize
		wo.OnConflict = func(id string, attempt int, err error) {
			db.logger.LogConflict(context.Background(), id, attempt, err)
		}
		wo.Metrics = obs
		wo.Logger = o.logger.Logger
	}
	searchOpts := func(so *engine.SearchOptions) {
		so.Oversample = o.oversample
		so.Concurrency = o.concurrency
		so.Metrics = obs
		so.Logger = o.logger.Logger
	}

	switch o.backend {
	case BackendBruteForce:
		bf, err := engine.NewBruteForce(blobs, commits, dimension, embedder, meta, func(bo *engine.BruteForceOptions) {
			bo.Store = append(bo.Store, storeOpts)
			bo.Writer = append(bo.Writer, writerOpts)
			bo.Search = append(bo.Search, searchOpts)
		})
		if err != nil {
			return nil, translateError(err)
		}
		db.backend, db.store = bf, bf.Store()
	default:
		store, err := engine.NewStore(blobs, commits, dimension, storeOpts)
		if err != nil {
			return nil, translateError(err)
		}
		db.backend = engine.NewANN(store,
			engine.NewWriter(store, writerOpts),
			engine.NewSearcher(store, embedder, meta, searchOpts))
		db.store = store
	}

	return db, nil
}

// Backend returns the selected backend kind.
func (db *DB) Backend() BackendKind { return db.backendID }

// Dimension returns the configured vector dimension.
func (db *DB) Dimension() int { return db.dimension }

// Metrics returns the configured metrics collector.
func (db *DB) Metrics() MetricsCollector { return db.metrics }

// Append indexes vector under id and returns once the insertion is committed.
func (db *DB) Append(ctx context.Context, id model.RecordID, vector model.Vector) error {
	if db.closed.Load() {
		return ErrClosed
	}
	err := translateError(db.backend.Append(ctx, id, vector))
	db.logger.LogAppend(ctx, id, len(vector), err)
	return err
}

// Search embeds query and returns up to k filtered results, best first.
func (db *DB) Search(ctx context.Context, query string, k int, filters model.FilterSet) ([]model.SearchResult, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	results, err := db.backend.Search(ctx, query, k, filters)
	err = translateError(err)
	db.logger.LogSearch(ctx, k, len(results), err)
	return results, err
}

// SearchVector is Search with a precomputed query vector.
func (db *DB) SearchVector(ctx context.Context, vector model.Vector, k int, filters model.FilterSet) ([]model.SearchResult, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	results, err := db.backend.SearchVector(ctx, vector, k, filters)
	err = translateError(err)
	db.logger.LogSearch(ctx, k, len(results), err)
	return results, err
}

// Stats returns the state of the latest commit.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	if db.closed.Load() {
		return Stats{}, ErrClosed
	}
	st, err := db.backend.Stats(ctx)
	return st, translateError(err)
}

// Prune deletes index and table blobs that belong to neither the latest
// keep versions nor the latest commit.
func (db *DB) Prune(ctx context.Context, keep int) (PruneResult, error) {
	if db.closed.Load() {
		return PruneResult{}, ErrClosed
	}
	res, err := db.store.Prune(ctx, keep)
	err = translateError(err)
	db.logger.LogPrune(ctx, len(res.Deleted), res.Kept, err)
	return res, err
}

// Vector returns the raw vector written for id when raw vectors are enabled.
func (db *DB) Vector(ctx context.Context, id model.RecordID) (model.Vector, error) {
	return db.store.Vector(ctx, id)
}

// Close marks the DB closed. It holds no resources of its own; stores are
// closed by their owners.
func (db *DB) Close() error {
	db.closed.Store(true)
	return nil
}
