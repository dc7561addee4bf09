package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/hupe1980/ccvec/model"
)

// RateLimited bounds the request rate against an embedding provider.
type RateLimited struct {
	inner   Embedder
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond calls per second with the given burst.
func NewRateLimited(inner Embedder, perSecond float64, burst int) *RateLimited {
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), max(burst, 1)),
	}
}

// Embed waits for a token, then delegates.
func (r *RateLimited) Embed(ctx context.Context, text string) (model.Vector, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding: rate limit: %w", err)
	}
	return r.inner.Embed(ctx, text)
}
