package blobstore

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLocker(t *testing.T, l Locker) {
	t.Helper()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Lock(ctx))
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			require.NoError(t, l.Unlock())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen.Load())

	// Lock honours cancellation while held elsewhere.
	require.NoError(t, l.Lock(ctx))
	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Lock(cctx), context.DeadlineExceeded)
	require.NoError(t, l.Unlock())

	assert.Error(t, l.Unlock())
}

func TestMutexLocker(t *testing.T) {
	testLocker(t, NewMutexLocker())
}

func TestFileLocker(t *testing.T) {
	testLocker(t, NewFileLocker(filepath.Join(t.TempDir(), "locks", "writer.lock")))
}

func TestFileLocker_CrossInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "writer.lock")
	a := NewFileLocker(path)
	b := NewFileLocker(path)

	ctx := context.Background()
	require.NoError(t, a.Lock(ctx))

	cctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Lock(cctx), context.DeadlineExceeded)

	require.NoError(t, a.Unlock())
	require.NoError(t, b.Lock(ctx))
	require.NoError(t, b.Unlock())
}
