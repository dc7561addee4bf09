package embedding

import (
	"context"

	"github.com/hupe1980/ccvec/internal/cache"
	"github.com/hupe1980/ccvec/model"
)

// Cached is an LRU cache for embeddings keyed by text.
type Cached struct {
	inner Embedder
	lru   *cache.LRU[string, model.Vector]
}

// NewCached wraps inner with a cache holding up to capacity embeddings.
func NewCached(inner Embedder, capacity int) *Cached {
	return &Cached{
		inner: inner,
		lru:   cache.NewLRU[string, model.Vector](int64(max(capacity, 1)), nil),
	}
}

// Embed returns the cached embedding for text, computing it on a miss.
// Errors are not cached.
func (c *Cached) Embed(ctx context.Context, text string) (model.Vector, error) {
	if v, ok := c.lru.Get(text); ok {
		return v.Clone(), nil
	}

	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.lru.Set(text, v.Clone())
	return v, nil
}

// Stats returns cache hits and misses.
func (c *Cached) Stats() (hits, misses int64) {
	return c.lru.Stats()
}
