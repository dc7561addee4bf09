package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hupe1980/ccvec/distance"
	"github.com/hupe1980/ccvec/model"
)

// Writer appends (id, vector) pairs to the persisted index.
//
// Concurrent Appends, from one process or many, are safe: each append
// commits through compare-and-swap and retries on conflict.
type Writer struct {
	store   *Store
	opts    WriterOptions
	metrics MetricsObserver
	logger  *slog.Logger
}

// NewWriter creates a Writer over store.
func NewWriter(store *Store, optFns ...func(o *WriterOptions)) *Writer {
	opts := DefaultWriterOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Writer{
		store:   store,
		opts:    opts,
		metrics: metricsOrNoop(opts.Metrics),
		logger:  loggerOrDiscard(opts.Logger),
	}
}

func (w *Writer) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.opts.InitialBackoff
	b.MaxInterval = w.opts.MaxBackoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, w.opts.MaxRetries), ctx)
}

// Append adds vector under id and returns once the insertion is committed.
//
// It fails with *ErrDimensionMismatch or ErrDuplicateID without changing the
// index, and with ErrIndexCorrupt when the persisted pair is unreadable.
func (w *Writer) Append(ctx context.Context, id model.RecordID, vector model.Vector) (err error) {
	start := time.Now()
	conflicts := 0
	defer func() {
		w.metrics.OnAppend(time.Since(start), conflicts, err)
	}()

	if id == "" {
		return ErrInvalidID
	}
	if len(vector) != w.store.Dimension() {
		return &ErrDimensionMismatch{Expected: w.store.Dimension(), Actual: len(vector)}
	}

	vector = vector.Clone()
	if w.opts.Normalize {
		distance.NormalizeL2InPlace(vector)
	}

	if w.opts.Locker != nil {
		if err := w.opts.Locker.Lock(ctx); err != nil {
			return fmt.Errorf("engine: acquire writer lock: %w", err)
		}
		defer func() {
			if uerr := w.opts.Locker.Unlock(); uerr != nil {
				w.logger.Warn("release writer lock", "error", uerr)
			}
		}()
	}

	var version uint64

	op := func() error {
		snap, err := w.store.Load(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if snap.Contains(id) {
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrDuplicateID, id))
		}

		if err := snap.Add(id, vector); err != nil {
			return backoff.Permanent(err)
		}

		expected := snap.Version
		version, err = w.store.Save(ctx, snap)
		if err != nil {
			if errors.Is(err, ErrVersionConflict) {
				conflicts++
				w.metrics.OnConflict(expected)
				if w.opts.OnConflict != nil {
					w.opts.OnConflict(id, conflicts, err)
				}
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	notify := func(_ error, next time.Duration) {
		w.logger.Debug("append conflict, retrying", "id", id, "attempt", conflicts, "backoff", next)
	}

	if err := backoff.RetryNotify(op, w.backoff(ctx), notify); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return fmt.Errorf("engine: append %s gave up after %d conflicts: %w", id, conflicts, err)
		}
		return err
	}

	// Only the winner of a race on id reaches this point, so a raw vector
	// that was committed first is never replaced.
	if w.opts.StoreRawVectors {
		if err := w.store.PutVector(ctx, id, vector); err != nil {
			return fmt.Errorf("engine: %s committed at version %d: %w", id, version, err)
		}
	}

	w.logger.Debug("appended", "id", id, "version", version, "conflicts", conflicts)
	return nil
}
