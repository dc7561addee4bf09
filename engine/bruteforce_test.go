package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ccvec/blobstore"
	"github.com/hupe1980/ccvec/embedding"
	"github.com/hupe1980/ccvec/model"
)

func newBruteForce(t *testing.T, emb Embedder, meta MetadataStore) (*BruteForce, *blobstore.MemoryStore) {
	t.Helper()
	blobs := blobstore.NewMemoryStore()
	bf, err := NewBruteForce(blobs, blobstore.NewMemoryCommitStore(), testDim, emb, meta)
	require.NoError(t, err)
	return bf, blobs
}

func TestBruteForce_RanksByCosine(t *testing.T) {
	meta := newMapMeta()
	emb := &embedding.Static{Vectors: map[string]model.Vector{"billing": axis(0, 1)}}
	bf, blobs := newBruteForce(t, emb, meta)
	ctx := context.Background()

	records := []struct {
		id  string
		vec model.Vector
	}{
		{"far", axis(1, 3)},
		{"close", model.Vector{1, 1, 0, 0, 0, 0, 0, 0}},
		{"zero", make(model.Vector, testDim)},
		{"exact", axis(0, 10)},
		{"exact-later", axis(0, 2)},
	}
	for _, r := range records {
		require.NoError(t, bf.Append(ctx, r.id, r.vec))
		require.NoError(t, meta.Put(ctx, model.Metadata{ID: r.id}))
	}

	results, err := bf.Search(ctx, "billing", 5, model.FilterSet{})
	require.NoError(t, err)
	require.Len(t, results, 5)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
		assert.Equal(t, model.ScaleCosine, r.Scale)
	}
	// Ties keep insertion order; the zero vector scores 0 like the orthogonal one.
	assert.Equal(t, []string{"exact", "exact-later", "close", "far", "zero"}, ids)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.70710677, results[2].Score, 1e-6)
	assert.Equal(t, float32(0), results[4].Score)
	assertNonIncreasing(t, results)

	names, err := blobs.List(ctx, "vectors/")
	require.NoError(t, err)
	assert.Len(t, names, 2)
}

func TestBruteForce_FiltersFullRanking(t *testing.T) {
	meta := newMapMeta()
	bf, _ := newBruteForce(t, nil, meta)
	ctx := context.Background()

	// Only the two least similar records are resolved; an oversampled window
	// of k*3 would miss them, the full scan does not.
	for i := range 8 {
		id := string(rune('a' + i))
		require.NoError(t, bf.Append(ctx, id, model.Vector{1, float32(i), 0, 0, 0, 0, 0, 0}))
		require.NoError(t, meta.Put(ctx, model.Metadata{ID: id, Resolved: i >= 6}))
	}

	results, err := bf.SearchVector(ctx, axis(0, 1), 1, model.FilterSet{}.WithResolved(true))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "g", results[0].ID)
}

func TestBruteForce_Contract(t *testing.T) {
	meta := newMapMeta()
	bf, _ := newBruteForce(t, embedding.NewHash(testDim), meta)
	ctx := context.Background()

	results, err := bf.Search(ctx, "billing issue", 5, model.FilterSet{})
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, bf.Append(ctx, "a", axis(0, 1)))
	assert.ErrorIs(t, bf.Append(ctx, "a", axis(1, 1)), ErrDuplicateID)

	var dm *ErrDimensionMismatch
	assert.ErrorAs(t, bf.Append(ctx, "b", model.Vector{1}), &dm)

	_, err = bf.Search(ctx, "q", 0, model.FilterSet{})
	assert.ErrorIs(t, err, ErrInvalidK)

	st, err := bf.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Count)
	assert.Equal(t, model.ScaleCosine, st.Scale)
}

func TestBruteForce_RejectsForeignIndex(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	commits := blobstore.NewMemoryCommitStore()

	// An L2 index committed under the brute-force prefix.
	l2, err := NewStore(blobs, commits, testDim, func(o *StoreOptions) { o.Prefix = "vectors/" })
	require.NoError(t, err)
	require.NoError(t, NewWriter(l2).Append(context.Background(), "a", axis(0, 1)))

	bf, err := NewBruteForce(blobs, commits, testDim, nil, newMapMeta())
	require.NoError(t, err)
	_, err = bf.SearchVector(context.Background(), axis(0, 1), 1, model.FilterSet{})
	assert.Error(t, err)
}
