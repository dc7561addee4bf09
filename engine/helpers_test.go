package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ccvec/blobstore"
	"github.com/hupe1980/ccvec/model"
)

const testDim = 8

// mapMeta is a minimal MetadataStore for engine tests.
type mapMeta struct {
	mu    sync.Mutex
	data  map[model.RecordID]model.Metadata
	fail  map[model.RecordID]bool
	calls atomic.Int32
}

func newMapMeta() *mapMeta {
	return &mapMeta{data: map[model.RecordID]model.Metadata{}, fail: map[model.RecordID]bool{}}
}

func (m *mapMeta) Get(_ context.Context, id model.RecordID) (model.Metadata, bool, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[id] {
		return model.Metadata{}, false, errors.New("lookup failed")
	}
	md, ok := m.data[id]
	return md, ok, nil
}

func (m *mapMeta) Put(_ context.Context, md model.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[md.ID] = md
	return nil
}

type fixture struct {
	blobs   *blobstore.MemoryStore
	commits blobstore.CommitStore
	store   *Store
	meta    *mapMeta
}

func newFixture(t *testing.T, optFns ...func(o *StoreOptions)) *fixture {
	t.Helper()
	blobs := blobstore.NewMemoryStore()
	commits := blobstore.NewMemoryCommitStore()
	store, err := NewStore(blobs, commits, testDim, optFns...)
	require.NoError(t, err)
	return &fixture{blobs: blobs, commits: commits, store: store, meta: newMapMeta()}
}

// axis returns a unit vector along dimension i, scaled by s.
func axis(i int, s float32) model.Vector {
	v := make(model.Vector, testDim)
	v[i] = s
	return v
}

// barrierCommits holds the first n commits until n loads have happened, so
// n writers are guaranteed to race on the same version.
type barrierCommits struct {
	blobstore.CommitStore
	n     int32
	loads atomic.Int32
	ready chan struct{}
	once  sync.Once
}

func newBarrierCommits(inner blobstore.CommitStore, n int32) *barrierCommits {
	return &barrierCommits{CommitStore: inner, n: n, ready: make(chan struct{})}
}

func (b *barrierCommits) Latest(ctx context.Context) (blobstore.Commit, error) {
	c, err := b.CommitStore.Latest(ctx)
	if b.loads.Add(1) == b.n {
		b.once.Do(func() { close(b.ready) })
	}
	return c, err
}

func (b *barrierCommits) Commit(ctx context.Context, expected uint64, manifest []byte) (uint64, error) {
	select {
	case <-b.ready:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return b.CommitStore.Commit(ctx, expected, manifest)
}

// lossyCommits fails the next failures commits with a transport error. With
// land set the commit is applied before the error is reported.
type lossyCommits struct {
	blobstore.CommitStore
	land     bool
	failures atomic.Int32
}

func (c *lossyCommits) Commit(ctx context.Context, expected uint64, manifest []byte) (uint64, error) {
	if c.failures.Add(-1) < 0 {
		return c.CommitStore.Commit(ctx, expected, manifest)
	}
	if c.land {
		if _, err := c.CommitStore.Commit(ctx, expected, manifest); err != nil {
			return 0, err
		}
	}
	return 0, errors.New("connection reset by peer")
}

// hookedBlobs runs hook once, before the first Open of a name with prefix.
type hookedBlobs struct {
	*blobstore.MemoryStore
	prefix string
	hook   func()
	once   sync.Once
}

func (h *hookedBlobs) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if strings.HasPrefix(name, h.prefix) {
		h.once.Do(h.hook)
	}
	return h.MemoryStore.Open(ctx, name)
}
