package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/hupe1980/ccvec/model"
)

// Hash is a deterministic embedder for tests. It returns a fixed-dimension
// vector derived from the text hash so that the same text always gets the
// same embedding.
type Hash struct {
	dimensions int
}

// NewHash returns an embedder that produces deterministic embeddings of the
// given dimensions.
func NewHash(dimensions int) *Hash {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &Hash{dimensions: dimensions}
}

// Dimensions returns the embedding dimension.
func (e *Hash) Dimensions() int { return e.dimensions }

// Embed returns a unit-length embedding based on the text hash.
func (e *Hash) Embed(_ context.Context, text string) (model.Vector, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := float64(h.Sum64() % (1 << 31))

	emb := make(model.Vector, e.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(seed*float64(i+1))*0.1 + 0.01)
	}

	// Normalize to unit length for cosine similarity
	var sum float64
	for _, v := range emb {
		sum += float64(v * v)
	}
	if sum > 0 {
		norm := 1.0 / math.Sqrt(sum)
		for i := range emb {
			emb[i] *= float32(norm)
		}
	}
	return emb, nil
}

// Static returns fixed vectors for known texts, for scenario tests.
type Static struct {
	Vectors map[string]model.Vector
	// Err is returned for every call when set.
	Err error
}

// Embed implements Embedder.
func (s *Static) Embed(_ context.Context, text string) (model.Vector, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	v, ok := s.Vectors[text]
	if !ok {
		return nil, ErrUnknownText
	}
	return v.Clone(), nil
}
