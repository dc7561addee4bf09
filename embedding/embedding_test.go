package embedding

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ccvec/distance"
	"github.com/hupe1980/ccvec/model"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
	// Characters, not bytes.
	assert.Equal(t, "äö", Truncate("äöü", 2))

	long := strings.Repeat("x", MaxInputChars+10)
	assert.Len(t, Truncate(long, MaxInputChars), MaxInputChars)
}

func TestHash(t *testing.T) {
	e := NewHash(32)
	ctx := context.Background()

	a1, err := e.Embed(ctx, "billing issue")
	require.NoError(t, err)
	a2, err := e.Embed(ctx, "billing issue")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "password reset")
	require.NoError(t, err)

	assert.Len(t, a1, 32)
	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.InDelta(t, 1.0, distance.Norm(a1), 1e-5)

	_, err = e.Embed(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestStatic(t *testing.T) {
	s := &Static{Vectors: map[string]model.Vector{"q": {1, 0}}}

	v, err := s.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, model.Vector{1, 0}, v)

	// Callers may mutate the result.
	v[0] = 9
	v2, _ := s.Embed(context.Background(), "q")
	assert.Equal(t, float32(1), v2[0])

	_, err = s.Embed(context.Background(), "other")
	assert.ErrorIs(t, err, ErrUnknownText)
}

func TestCached(t *testing.T) {
	var calls atomic.Int32
	inner := Func(func(ctx context.Context, text string) (model.Vector, error) {
		calls.Add(1)
		if text == "fail" {
			return nil, errors.New("boom")
		}
		return model.Vector{float32(len(text))}, nil
	})

	c := NewCached(inner, 2)
	ctx := context.Background()

	for range 3 {
		v, err := c.Embed(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, model.Vector{3}, v)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, err := c.Embed(ctx, "fail")
	assert.Error(t, err)
	_, err = c.Embed(ctx, "fail")
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "errors are not cached")

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(3), misses)
}

func TestRateLimited(t *testing.T) {
	inner := NewHash(4)
	r := NewRateLimited(inner, 1, 1)

	ctx := context.Background()
	_, err := r.Embed(ctx, "a")
	require.NoError(t, err)

	// The bucket is empty; a short deadline expires before the next token.
	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = r.Embed(ctx, "b")
	assert.Error(t, err)
}
