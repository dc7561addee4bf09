package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ccvec/distance"
	"github.com/hupe1980/ccvec/embedding"
	"github.com/hupe1980/ccvec/index"
	"github.com/hupe1980/ccvec/model"
	"github.com/hupe1980/ccvec/testutil"
)

// seed appends n random records with metadata; record i is resolved when
// i%5 < 3 and has CSAT 1 + i%5.
func seed(t *testing.T, f *fixture, n int) []model.Vector {
	t.Helper()
	ctx := context.Background()
	rng := testutil.NewRNG(42)
	w := NewWriter(f.store)

	vecs := make([]model.Vector, n)
	for i, id := range testutil.RecordIDs("rec", n) {
		vecs[i] = rng.UnitVector(testDim)
		require.NoError(t, w.Append(ctx, id, vecs[i]))
		require.NoError(t, f.meta.Put(ctx, model.Metadata{
			ID:        id,
			CSAT:      float64(1 + i%5),
			Resolved:  i%5 < 3,
			Sentiment: rng.Sentiment(),
		}))
	}
	return vecs
}

func assertNonIncreasing(t *testing.T, results []model.SearchResult) {
	t.Helper()
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity, "position %d", i)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	f := newFixture(t)
	s := NewSearcher(f.store, embedding.NewHash(testDim), f.meta)

	results, err := s.Search(context.Background(), "billing issue", 5, model.FilterSet{})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_ClosestVectorFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := NewWriter(f.store)

	q := axis(0, 1)
	require.NoError(t, w.Append(ctx, "A", model.Vector{0.9, 0.1, 0, 0, 0, 0, 0, 0}))
	require.NoError(t, w.Append(ctx, "B", axis(1, 1)))
	require.NoError(t, w.Append(ctx, "C", axis(2, -1)))
	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, f.meta.Put(ctx, model.Metadata{ID: id}))
	}

	emb := &embedding.Static{Vectors: map[string]model.Vector{"Q": q}}
	s := NewSearcher(f.store, emb, f.meta)

	results, err := s.Search(ctx, "Q", 1, model.FilterSet{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].ID)
	assert.Equal(t, model.ScaleL2, results[0].Scale)
	assert.InDelta(t, 0.02, results[0].Score, 1e-6)
	assert.InDelta(t, 1/(1+0.02), results[0].Similarity, 1e-6)

	all, err := s.SearchVector(ctx, q, 3, model.FilterSet{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "A", all[0].ID)
	assert.Equal(t, results[0].Similarity, all[0].Similarity)
	assertNonIncreasing(t, all)
}

func TestSearch_ResolvedFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := testutil.NewRNG(3)
	w := NewWriter(f.store)

	for i, id := range testutil.RecordIDs("r", 10) {
		require.NoError(t, w.Append(ctx, id, rng.UnitVector(testDim)))
		require.NoError(t, f.meta.Put(ctx, model.Metadata{ID: id, Resolved: i < 6}))
	}

	s := NewSearcher(f.store, embedding.NewHash(testDim), f.meta)
	results, err := s.Search(ctx, "q", 10, model.FilterSet{}.WithResolved(true))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 6)
	assert.NotEmpty(t, results)
	for _, r := range results {
		assert.True(t, r.Metadata.Resolved)
	}
	assertNonIncreasing(t, results)
}

func TestSearch_RankingNonIncreasing(t *testing.T) {
	f := newFixture(t)
	seed(t, f, 40)

	s := NewSearcher(f.store, embedding.NewHash(testDim), f.meta)
	for _, q := range []string{"billing issue", "refund", "password reset"} {
		results, err := s.Search(context.Background(), q, 10, model.FilterSet{})
		require.NoError(t, err)
		assert.Len(t, results, 10)
		assertNonIncreasing(t, results)
	}
}

func TestSearch_FilterMonotonicity(t *testing.T) {
	f := newFixture(t)
	seed(t, f, 40)
	s := NewSearcher(f.store, embedding.NewHash(testDim), f.meta)

	chains := [][]model.FilterSet{
		{
			{},
			model.FilterSet{}.WithResolved(true),
			model.FilterSet{}.WithResolved(true).WithMinScore(2),
			model.FilterSet{}.WithResolved(true).WithMinScore(2).WithSentiment(model.SentimentPositive),
		},
		{
			{},
			model.FilterSet{}.WithMinScore(3),
			model.FilterSet{}.WithMinScore(5),
		},
	}

	for _, chain := range chains {
		prev := -1
		for _, fs := range chain {
			results, err := s.Search(context.Background(), "billing issue", 10, fs)
			require.NoError(t, err)
			for _, r := range results {
				assert.True(t, fs.Match(r.Metadata))
			}
			if prev >= 0 {
				assert.LessOrEqual(t, len(results), prev)
			}
			prev = len(results)
		}
	}
}

func TestSearch_OversampleWindow(t *testing.T) {
	f := newFixture(t)
	seed(t, f, 30)
	s := NewSearcher(f.store, embedding.NewHash(testDim), f.meta)

	f.meta.calls.Store(0)
	_, err := s.Search(context.Background(), "q", 2, model.FilterSet{})
	require.NoError(t, err)
	assert.Equal(t, int32(2*Oversample), f.meta.calls.Load())

	// A very selective filter does not widen the window.
	f.meta.calls.Store(0)
	results, err := s.Search(context.Background(), "q", 2, model.FilterSet{}.WithMinScore(100))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int32(2*Oversample), f.meta.calls.Load())

	// The window never exceeds the vector count.
	f.meta.calls.Store(0)
	results, err = s.Search(context.Background(), "q", 25, model.FilterSet{})
	require.NoError(t, err)
	assert.Len(t, results, 25)
	assert.Equal(t, int32(30), f.meta.calls.Load())
}

func TestSearch_SkipsMissingAndFailingMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seed(t, f, 6)

	f.meta.mu.Lock()
	delete(f.meta.data, "rec-00001")
	f.meta.fail["rec-00002"] = true
	f.meta.mu.Unlock()

	s := NewSearcher(f.store, embedding.NewHash(testDim), f.meta)
	results, err := s.Search(ctx, "q", 6, model.FilterSet{})
	require.NoError(t, err)
	assert.Len(t, results, 4)
	for _, r := range results {
		assert.NotEqual(t, "rec-00001", r.ID)
		assert.NotEqual(t, "rec-00002", r.ID)
	}
}

func TestResolve_SkipsStalePositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seed(t, f, 3)

	snap, err := f.store.Load(ctx)
	require.NoError(t, err)

	neighbors := []index.Neighbor{
		{Position: 0, Score: 0.1},
		{Position: 7, Score: 0.2},
		{Position: 2, Score: 0.3},
	}
	results, err := resolve(ctx, resolver{meta: f.meta, concurrency: 2, logger: loggerOrDiscard(nil)}, snap, neighbors, 10, model.FilterSet{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "rec-00000", results[0].ID)
	assert.Equal(t, "rec-00002", results[1].ID)
}

func TestSearch_Errors(t *testing.T) {
	f := newFixture(t)
	seed(t, f, 3)
	ctx := context.Background()

	s := NewSearcher(f.store, embedding.NewHash(testDim), f.meta)
	_, err := s.Search(ctx, "q", 0, model.FilterSet{})
	assert.ErrorIs(t, err, ErrInvalidK)
	_, err = s.SearchVector(ctx, axis(0, 1), -1, model.FilterSet{})
	assert.ErrorIs(t, err, ErrInvalidK)

	var dm *ErrDimensionMismatch
	_, err = s.SearchVector(ctx, model.Vector{1, 2}, 3, model.FilterSet{})
	assert.ErrorAs(t, err, &dm)

	cause := errors.New("bedrock throttled")
	broken := NewSearcher(f.store, &embedding.Static{Err: cause}, f.meta)
	_, err = broken.Search(ctx, "q", 3, model.FilterSet{})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.ErrorIs(t, err, cause)

	m := manifestOf(t, f.commits)
	require.True(t, f.blobs.Corrupt(m.IndexKey, func(b []byte) []byte { return b[:5] }))
	_, err = s.Search(ctx, "q", 3, model.FilterSet{})
	assert.ErrorIs(t, err, ErrIndexCorrupt)
}

func TestSearch_TruncatesQuery(t *testing.T) {
	f := newFixture(t)
	seed(t, f, 2)

	var got string
	emb := embedding.Func(func(_ context.Context, text string) (model.Vector, error) {
		got = text
		return axis(0, 1), nil
	})
	s := NewSearcher(f.store, emb, f.meta, func(o *SearchOptions) { o.MaxQueryChars = 4 })

	_, err := s.Search(context.Background(), "billing issue", 1, model.FilterSet{})
	require.NoError(t, err)
	assert.Equal(t, "bill", got)
}

func TestSearch_CosineScale(t *testing.T) {
	f := newFixture(t, func(o *StoreOptions) { o.NewIndex = FlatIndex(distance.MetricCosine) })
	ctx := context.Background()
	w := NewWriter(f.store)

	require.NoError(t, w.Append(ctx, "same", axis(0, 2)))
	require.NoError(t, w.Append(ctx, "opposite", axis(0, -1)))
	require.NoError(t, w.Append(ctx, "orthogonal", axis(1, 1)))
	for _, id := range []string{"same", "opposite", "orthogonal"} {
		require.NoError(t, f.meta.Put(ctx, model.Metadata{ID: id}))
	}

	s := NewSearcher(f.store, nil, f.meta)
	results, err := s.SearchVector(ctx, axis(0, 1), 3, model.FilterSet{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"same", "orthogonal", "opposite"}, []string{results[0].ID, results[1].ID, results[2].ID})
	for _, r := range results {
		assert.Equal(t, model.ScaleCosine, r.Scale)
	}
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, -1.0, results[2].Score, 1e-6)
	assert.Equal(t, 0.0, results[2].Similarity)
	assertNonIncreasing(t, results)

	_, err = s.Search(ctx, "text", 1, model.FilterSet{})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestSearch_HNSWBackend(t *testing.T) {
	f := newFixture(t, func(o *StoreOptions) { o.NewIndex = HNSWIndex() })
	vecs := seed(t, f, 50)

	s := NewSearcher(f.store, nil, f.meta)
	results, err := s.SearchVector(context.Background(), vecs[17], 5, model.FilterSet{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "rec-00017", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assertNonIncreasing(t, results)

	st, err := f.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, index.KindHNSW, st.Kind)
}

func TestANN_Backend(t *testing.T) {
	f := newFixture(t)
	ann := NewANN(f.store, NewWriter(f.store), NewSearcher(f.store, embedding.NewHash(testDim), f.meta))
	ctx := context.Background()

	require.NoError(t, ann.Append(ctx, "a", axis(0, 1)))
	require.NoError(t, f.meta.Put(ctx, model.Metadata{ID: "a"}))

	results, err := ann.SearchVector(ctx, axis(0, 1), 1, model.FilterSet{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	st, err := ann.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Count)
}

func TestSearch_HugeK(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, NewWriter(f.store).Append(ctx, "a", axis(0, 1)))

	s := NewSearcher(f.store, embedding.NewHash(testDim), nil)
	for _, k := range []int{1 << 40, math.MaxInt} {
		results, err := s.SearchVector(ctx, axis(0, 1), k, model.FilterSet{})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "a", results[0].ID)
	}

	bf, _ := newBruteForce(t, nil, nil)
	require.NoError(t, bf.Append(ctx, "a", axis(0, 1)))
	results, err := bf.SearchVector(ctx, axis(0, 1), math.MaxInt, model.FilterSet{})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestWindow(t *testing.T) {
	assert.Equal(t, 6, window(2, 3, 30))
	assert.Equal(t, 30, window(25, 3, 30))
	assert.Equal(t, 30, window(10, 3, 30))
	assert.Equal(t, 30, window(math.MaxInt, 3, 30))
	assert.Equal(t, 1, window(1<<40, 1, 1))
}
