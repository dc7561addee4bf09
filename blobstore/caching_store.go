package blobstore

import (
	"context"

	"github.com/hupe1980/ccvec/internal/cache"
)

// DefaultCacheBytes is the capacity used by NewCachingStore when none is given.
const DefaultCacheBytes = 64 << 20

// CachingStore wraps a BlobStore and caches whole blobs in an LRU.
//
// Index blobs are written once under unique names and never modified, so a
// cached copy stays valid until the blob is deleted through this store.
type CachingStore struct {
	inner BlobStore
	cache *cache.LRU[string, []byte]
}

// NewCachingStore creates a new CachingStore.
// capacity is the cache size in bytes; it defaults to DefaultCacheBytes if <= 0.
func NewCachingStore(inner BlobStore, capacity int64) *CachingStore {
	if capacity <= 0 {
		capacity = DefaultCacheBytes
	}
	return &CachingStore{
		inner: inner,
		cache: cache.NewLRU[string, []byte](capacity, func(b []byte) int64 { return int64(len(b)) }),
	}
}

// Open returns the cached blob or loads it from the inner store.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	if data, ok := s.cache.Get(name); ok {
		return NewBytesBlob(data), nil
	}

	data, err := ReadAll(ctx, s.inner, name)
	if err != nil {
		return nil, err
	}

	s.cache.Set(name, data)
	return NewBytesBlob(data), nil
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	// Invalidate cache entries for this blob
	s.cache.Remove(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.Remove(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Stats returns cache hit and miss counts.
func (s *CachingStore) Stats() (hits, misses int64) {
	return s.cache.Stats()
}
