package engine

import (
	"context"
	"time"

	"github.com/hupe1980/ccvec/index"
	"github.com/hupe1980/ccvec/model"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (model.Vector, error)
}

// MetadataStore is a keyed store of record attributes.
type MetadataStore interface {
	// Get returns the metadata for id. The boolean is false when no record
	// exists.
	Get(ctx context.Context, id model.RecordID) (model.Metadata, bool, error)

	// Put inserts or replaces the metadata of m.ID.
	Put(ctx context.Context, m model.Metadata) error
}

// Backend is the contract shared by the ANN path and BruteForce.
type Backend interface {
	Append(ctx context.Context, id model.RecordID, vector model.Vector) error
	Search(ctx context.Context, query string, k int, filters model.FilterSet) ([]model.SearchResult, error)
	SearchVector(ctx context.Context, vector model.Vector, k int, filters model.FilterSet) ([]model.SearchResult, error)
	Stats(ctx context.Context) (Stats, error)
}

// Stats describes the latest committed state.
type Stats struct {
	Version     uint64      `json:"version"`
	Count       int         `json:"count"`
	Kind        index.Kind  `json:"kind"`
	Scale       model.Scale `json:"scale"`
	Dimension   int         `json:"dimension"`
	CommittedAt time.Time   `json:"committed_at,omitzero"`
}

// PruneResult reports what Store.Prune removed.
type PruneResult struct {
	Deleted []string `json:"deleted"`
	Kept    int      `json:"kept"`
}
