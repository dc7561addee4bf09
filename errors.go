package ccvec

import (
	"errors"
	"fmt"

	"github.com/hupe1980/ccvec/blobstore"
	"github.com/hupe1980/ccvec/engine"
	"github.com/hupe1980/ccvec/index"
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch = engine.ErrDimensionMismatch

var (
	// ErrDuplicateID is returned when appending an id that is already indexed.
	ErrDuplicateID = engine.ErrDuplicateID

	// ErrInvalidID is returned for an empty record id.
	ErrInvalidID = engine.ErrInvalidID

	// ErrIndexCorrupt is returned when the persisted index cannot be read back.
	ErrIndexCorrupt = engine.ErrIndexCorrupt

	// ErrEmbeddingUnavailable wraps embedding gateway failures.
	ErrEmbeddingUnavailable = engine.ErrEmbeddingUnavailable

	// ErrVersionConflict is returned when a commit loses a race and retries
	// are exhausted.
	ErrVersionConflict = engine.ErrVersionConflict

	// ErrMetadataMissing marks a search candidate without metadata. It is never
	// returned by Search.
	ErrMetadataMissing = engine.ErrMetadataMissing

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = engine.ErrInvalidK

	// ErrClosed is returned by operations on a closed DB.
	ErrClosed = errors.New("ccvec: db closed")
)

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// translateError keeps lower-level failures matchable against the errors of
// this package.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrVersionConflict),
		errors.Is(err, ErrIndexCorrupt),
		errors.Is(err, ErrDuplicateID),
		errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidK),
		errors.Is(err, ErrEmbeddingUnavailable):
		return err
	case errors.Is(err, blobstore.ErrConcurrentModification):
		return fmt.Errorf("%w: %w", ErrVersionConflict, err)
	case errors.Is(err, index.ErrCorrupt):
		return fmt.Errorf("%w: %w", ErrIndexCorrupt, err)
	}

	return err
}

// IsCorrupt reports whether err means the persisted index is unreadable.
func IsCorrupt(err error) bool {
	return engine.IsCorrupt(err)
}
