package blobstore

import (
	"context"
)

// Locker serializes writers. Holding the lock is an optimization that makes
// commit conflicts rare; correctness never depends on it.
type Locker interface {
	// Lock blocks until the lock is held or ctx is done.
	Lock(ctx context.Context) error
	// Unlock releases the lock.
	Unlock() error
}

// MutexLocker is an in-process Locker that honours context cancellation.
type MutexLocker struct {
	ch chan struct{}
}

// NewMutexLocker creates an unlocked MutexLocker.
func NewMutexLocker() *MutexLocker {
	return &MutexLocker{ch: make(chan struct{}, 1)}
}

// Lock implements Locker.
func (l *MutexLocker) Lock(ctx context.Context) error {
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock implements Locker.
func (l *MutexLocker) Unlock() error {
	select {
	case <-l.ch:
		return nil
	default:
		return errNotLocked
	}
}
