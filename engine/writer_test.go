package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ccvec/blobstore"
	"github.com/hupe1980/ccvec/distance"
	"github.com/hupe1980/ccvec/index/flat"
	"github.com/hupe1980/ccvec/model"
	"github.com/hupe1980/ccvec/testutil"
)

func fastRetry(o *WriterOptions) {
	o.InitialBackoff = time.Millisecond
	o.MaxBackoff = 5 * time.Millisecond
	o.MaxRetries = 50
}

func TestWriter_AppendKeepsPairConsistent(t *testing.T) {
	f := newFixture(t)
	w := NewWriter(f.store)
	ctx := context.Background()
	rng := testutil.NewRNG(7)

	for i, id := range testutil.RecordIDs("rec", 12) {
		require.NoError(t, w.Append(ctx, id, rng.UnitVector(testDim)))

		snap, err := f.store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, i+1, snap.Index.Len())
		assert.Len(t, snap.Table, snap.Index.Len())
		assert.Equal(t, uint64(i+1), snap.Version)
	}
}

func TestWriter_DuplicateLeavesIndexUnchanged(t *testing.T) {
	f := newFixture(t)
	w := NewWriter(f.store, func(o *WriterOptions) { o.StoreRawVectors = true })
	ctx := context.Background()

	original := axis(0, 1)
	require.NoError(t, w.Append(ctx, "a", original))

	err := w.Append(ctx, "a", axis(1, 1))
	require.ErrorIs(t, err, ErrDuplicateID)

	snap, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Index.Len())
	assert.Equal(t, uint64(1), snap.Version)

	stored, ok := snap.Index.(*flat.Flat).Vector(0)
	require.True(t, ok)
	assert.Equal(t, []float32(original), stored)

	raw, err := f.store.Vector(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, original, raw, "raw vector of the existing id is not overwritten")
}

func TestWriter_DimensionMismatch(t *testing.T) {
	f := newFixture(t)
	w := NewWriter(f.store)
	ctx := context.Background()

	require.NoError(t, w.Append(ctx, "a", axis(0, 1)))

	for _, n := range []int{0, testDim - 1, testDim + 1} {
		err := w.Append(ctx, "b", make(model.Vector, n))

		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, testDim, dm.Expected)
		assert.Equal(t, n, dm.Actual)
	}

	snap, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Index.Len())
	assert.Equal(t, []model.RecordID{"a"}, snap.Table)
}

func TestWriter_EmptyID(t *testing.T) {
	f := newFixture(t)
	err := NewWriter(f.store).Append(context.Background(), "", axis(0, 1))
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestWriter_CorruptIndexIsNotRepaired(t *testing.T) {
	f := newFixture(t)
	w := NewWriter(f.store)
	ctx := context.Background()

	require.NoError(t, w.Append(ctx, "a", axis(0, 1)))
	m := manifestOf(t, f.commits)
	require.True(t, f.blobs.Corrupt(m.IndexKey, func(b []byte) []byte { return b[:10] }))

	err := w.Append(ctx, "b", axis(1, 1))
	require.ErrorIs(t, err, ErrIndexCorrupt)

	latest, err := f.commits.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), latest.Version, "no new version was committed")
}

func TestWriter_Normalize(t *testing.T) {
	f := newFixture(t)
	w := NewWriter(f.store, func(o *WriterOptions) { o.Normalize = true })
	ctx := context.Background()

	input := axis(3, 4)
	require.NoError(t, w.Append(ctx, "a", input))
	assert.Equal(t, float32(4), input[3], "caller's vector is not mutated")

	snap, err := f.store.Load(ctx)
	require.NoError(t, err)
	stored, _ := snap.Index.(*flat.Flat).Vector(0)
	assert.InDelta(t, 1.0, distance.Norm(stored), 1e-6)
}

func TestWriter_TwoConcurrentAppendsOneConflict(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	commits := newBarrierCommits(blobstore.NewMemoryCommitStore(), 2)
	store, err := NewStore(blobs, commits, testDim)
	require.NoError(t, err)

	var conflicts atomic.Int32
	w := NewWriter(store, fastRetry, func(o *WriterOptions) {
		o.OnConflict = func(id string, attempt int, err error) {
			assert.ErrorIs(t, err, ErrVersionConflict)
			assert.Equal(t, 1, attempt)
			conflicts.Add(1)
		}
	})

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []model.RecordID{"A", "B"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = w.Append(ctx, id, axis(i, 1))
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int32(1), conflicts.Load())

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.RecordID{"A", "B"}, snap.Table)
	assert.Equal(t, 2, snap.Index.Len())
	assert.Equal(t, uint64(2), snap.Version)
}

func TestWriter_ManyConcurrentAppendsLoseNothing(t *testing.T) {
	for _, tc := range []struct {
		name   string
		locker blobstore.Locker
	}{
		{"optimistic", nil},
		{"mutex", blobstore.NewMutexLocker()},
		{"flock", blobstore.NewFileLocker(t.TempDir() + "/writer.lock")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			w := NewWriter(f.store, fastRetry, func(o *WriterOptions) {
				o.MaxRetries = 200
				o.Locker = tc.locker
			})

			ctx := context.Background()
			ids := testutil.RecordIDs("w", 16)
			var wg sync.WaitGroup
			errs := make(chan error, len(ids))
			for i, id := range ids {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := w.Append(ctx, id, axis(i%testDim, float32(i+1))); err != nil {
						errs <- fmt.Errorf("%s: %w", id, err)
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			snap, err := f.store.Load(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, ids, snap.Table)
			assert.Equal(t, len(ids), snap.Index.Len())
		})
	}
}

// alwaysConflict rejects every commit.
type alwaysConflict struct{ blobstore.CommitStore }

func (alwaysConflict) Commit(context.Context, uint64, []byte) (uint64, error) {
	return 0, blobstore.ErrConcurrentModification
}

func TestWriter_GivesUpAfterMaxRetries(t *testing.T) {
	store, err := NewStore(blobstore.NewMemoryStore(), alwaysConflict{blobstore.NewMemoryCommitStore()}, testDim)
	require.NoError(t, err)

	var seen []int
	w := NewWriter(store, fastRetry, func(o *WriterOptions) {
		o.MaxRetries = 3
		o.OnConflict = func(_ string, attempt int, _ error) { seen = append(seen, attempt) }
	})

	err = w.Append(context.Background(), "a", axis(0, 1))
	require.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, []int{1, 2, 3, 4}, seen)
}

func TestWriter_ContextCanceledWhileLocked(t *testing.T) {
	f := newFixture(t)
	locker := blobstore.NewMutexLocker()
	require.NoError(t, locker.Lock(context.Background()))
	defer func() { _ = locker.Unlock() }()

	w := NewWriter(f.store, func(o *WriterOptions) { o.Locker = locker })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := w.Append(ctx, "a", axis(0, 1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWriter_RacingDuplicateKeepsWinnerRawVector(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	commits := newBarrierCommits(blobstore.NewMemoryCommitStore(), 2)
	store, err := NewStore(blobs, commits, testDim)
	require.NoError(t, err)
	w := NewWriter(store, fastRetry, func(o *WriterOptions) { o.StoreRawVectors = true })

	ctx := context.Background()
	vecs := []model.Vector{axis(0, 1), axis(1, 1)}
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range vecs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = w.Append(ctx, "a", vecs[i])
		}()
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			winner = i
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateID)
	}
	require.NotEqual(t, -1, winner, "one append commits")

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.RecordID{"a"}, snap.Table)
	stored, _ := snap.Index.(*flat.Flat).Vector(0)
	assert.Equal(t, []float32(vecs[winner]), stored)

	raw, err := store.Vector(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, vecs[winner], raw)
}
