//go:build !unix

package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"
)

var errNotLocked = errors.New("blobstore: lock not held")

const lockPollInterval = 10 * time.Millisecond

// FileLocker is a Locker backed by exclusive creation of a lock file.
type FileLocker struct {
	path string
	mu   *MutexLocker
	held bool
}

// NewFileLocker creates a FileLocker for the lock file at path.
func NewFileLocker(path string) *FileLocker {
	return &FileLocker{path: path, mu: NewMutexLocker()}
}

// Lock implements Locker.
func (l *FileLocker) Lock(ctx context.Context) error {
	if err := l.mu.Lock(ctx); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		_ = l.mu.Unlock()
		return err
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_ = f.Close()
			l.held = true
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			_ = l.mu.Unlock()
			return err
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			_ = l.mu.Unlock()
			return ctx.Err()
		}
	}
}

// Unlock implements Locker.
func (l *FileLocker) Unlock() error {
	if !l.held {
		return errNotLocked
	}
	l.held = false
	return errors.Join(os.Remove(l.path), l.mu.Unlock())
}
