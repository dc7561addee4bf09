package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/ccvec/model"
)

// MaxInputChars is the longest text, in characters, submitted for embedding.
const MaxInputChars = 8000

// ErrEmptyInput is returned for empty text.
var ErrEmptyInput = errors.New("embedding: empty input")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) (model.Vector, error)
}

// Func adapts a function to the Embedder interface.
type Func func(ctx context.Context, text string) (model.Vector, error)

// Embed implements Embedder.
func (f Func) Embed(ctx context.Context, text string) (model.Vector, error) {
	return f(ctx, text)
}

// Truncate returns the first n characters of text.
func Truncate(text string, n int) string {
	if n <= 0 || len(text) <= n {
		return text
	}
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}

// ErrBadDimension reports a provider response of unexpected length.
type ErrBadDimension struct {
	Expected int
	Actual   int
}

func (e *ErrBadDimension) Error() string {
	return fmt.Sprintf("embedding: expected %d dimensions, got %d", e.Expected, e.Actual)
}

// ErrUnknownText is returned by Static for texts it has no vector for.
var ErrUnknownText = errors.New("embedding: unknown text")
