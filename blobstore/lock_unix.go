//go:build unix

package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

var errNotLocked = errors.New("blobstore: lock not held")

// lockPollInterval is the retry interval while another process holds the lock.
const lockPollInterval = 10 * time.Millisecond

// FileLocker is a Locker backed by an advisory flock(2) on a lock file.
// It excludes writers across processes on the same host and, through its
// in-process mutex, goroutines sharing the FileLocker.
type FileLocker struct {
	path string
	mu   *MutexLocker
	f    *os.File
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
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		_ = l.mu.Unlock()
		return err
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			l.f = f
			return nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			_ = f.Close()
			_ = l.mu.Unlock()
			return fmt.Errorf("flock %s: %w", l.path, err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			_ = f.Close()
			_ = l.mu.Unlock()
			return ctx.Err()
		}
	}
}

// Unlock implements Locker.
func (l *FileLocker) Unlock() error {
	if l.f == nil {
		return errNotLocked
	}
	f := l.f
	l.f = nil

	err := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	err = errors.Join(err, f.Close())
	return errors.Join(err, l.mu.Unlock())
}
