package index

import (
	"encoding"
	"errors"
	"fmt"

	"github.com/hupe1980/ccvec/model"
)

// ErrCorrupt is returned when an encoded index cannot be decoded.
var ErrCorrupt = errors.New("index: corrupt")

// ErrDimensionMismatch is a named error type for dimension mismatch
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Kind identifies an index implementation in persisted blobs and manifests.
type Kind uint8

const (
	KindFlat Kind = iota + 1
	KindHNSW
)

func (k Kind) String() string {
	switch k {
	case KindFlat:
		return "flat"
	case KindHNSW:
		return "hnsw"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseKind parses the string form of a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "flat":
		return KindFlat, nil
	case "hnsw":
		return KindHNSW, nil
	default:
		return 0, fmt.Errorf("unknown index kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Neighbor is a single search hit at an index position.
type Neighbor struct {
	Position model.Position
	// Score is a squared L2 distance for ScaleL2 indexes and a cosine
	// similarity for ScaleCosine indexes.
	Score float32
}

// Index represents a dense, append-only nearest-neighbor structure.
//
// Positions are assigned in insertion order starting at 0. Implementations are
// not safe for concurrent mutation; callers own a private copy per operation.
type Index interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler

	// Kind returns the implementation identifier.
	Kind() Kind

	// Scale returns the score scale reported by Search.
	Scale() model.Scale

	// Dimension returns the fixed vector dimension.
	Dimension() int

	// Len returns the number of stored vectors.
	Len() int

	// Add appends v and returns its position.
	Add(v []float32) (model.Position, error)

	// Search returns up to k neighbors of q, best first. Ties are broken by
	// ascending position.
	Search(q []float32, k int) ([]Neighbor, error)
}
