package engine

import (
	"errors"

	"github.com/hupe1980/ccvec/index"
)

// ErrDimensionMismatch reports a vector whose length differs from the
// configured dimension.
type ErrDimensionMismatch = index.ErrDimensionMismatch

var (
	// ErrDuplicateID is returned when appending an id that is already indexed.
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrInvalidID is returned for an empty record id.
	ErrInvalidID = errors.New("invalid record id")

	// ErrIndexCorrupt is returned when the persisted pair cannot be read back
	// consistently. It is never recovered from by starting over empty.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrEmbeddingUnavailable wraps embedder failures.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrVersionConflict is returned by Store.Save when the committed version
	// advanced since the snapshot was loaded.
	ErrVersionConflict = errors.New("version conflict")

	// ErrMetadataMissing marks a candidate without metadata. Search drops such
	// candidates and never returns this error.
	ErrMetadataMissing = errors.New("metadata missing")

	// ErrInvalidK is returned when k < 1.
	ErrInvalidK = errors.New("k must be at least 1")
)
