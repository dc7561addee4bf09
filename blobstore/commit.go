package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	vfs "github.com/hupe1980/ccvec/internal/fs"
)

// ErrConcurrentModification is returned when a concurrent write is detected.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// Commit is one committed version of the manifest.
//
// Version 0 with a nil Manifest means nothing has been committed yet.
type Commit struct {
	Version  uint64
	Manifest []byte
}

// CommitStore provides compare-and-swap over a monotonically increasing
// version token.
type CommitStore interface {
	// Latest returns the most recent commit.
	Latest(ctx context.Context) (Commit, error)

	// Commit publishes manifest as version expected+1 if and only if the
	// latest version is still expected. Otherwise it returns
	// ErrConcurrentModification and changes nothing.
	Commit(ctx context.Context, expected uint64, manifest []byte) (uint64, error)
}

// MemoryCommitStore is an in-memory CommitStore.
type MemoryCommitStore struct {
	mu     sync.Mutex
	latest Commit
}

// NewMemoryCommitStore creates a new in-memory commit store.
func NewMemoryCommitStore() *MemoryCommitStore {
	return &MemoryCommitStore{}
}

// Latest implements CommitStore.
func (m *MemoryCommitStore) Latest(_ context.Context) (Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Commit{Version: m.latest.Version, Manifest: slices.Clone(m.latest.Manifest)}, nil
}

// Commit implements CommitStore.
func (m *MemoryCommitStore) Commit(_ context.Context, expected uint64, manifest []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.latest.Version != expected {
		return 0, ErrConcurrentModification
	}
	m.latest = Commit{Version: expected + 1, Manifest: slices.Clone(manifest)}
	return m.latest.Version, nil
}

// LocalCommitStore keeps one file per committed version in a directory.
//
// A version file is published by hard-linking a fully written temp file to
// its final name, which fails if another writer already created it. Versions
// are dense, so the existence of expected+1 proves the latest moved on.
type LocalCommitStore struct {
	dir string
	fs  vfs.FileSystem
}

// NewLocalCommitStore creates a commit store in dir.
func NewLocalCommitStore(dir string, optFns ...LocalOption) *LocalCommitStore {
	// Reuse LocalStore options for the filesystem override.
	ls := NewLocalStore(dir, optFns...)
	return &LocalCommitStore{dir: dir, fs: ls.fs}
}

const commitSuffix = ".commit"

func commitName(version uint64) string {
	return fmt.Sprintf("%020d%s", version, commitSuffix)
}

// Latest implements CommitStore.
func (s *LocalCommitStore) Latest(_ context.Context) (Commit, error) {
	entries, err := s.fs.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Commit{}, nil
		}
		return Commit{}, err
	}

	var latest uint64
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), commitSuffix)
		if !ok || e.IsDir() {
			continue
		}
		v, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			continue
		}
		latest = max(latest, v)
	}

	if latest == 0 {
		return Commit{}, nil
	}

	data, err := s.read(filepath.Join(s.dir, commitName(latest)))
	if err != nil {
		return Commit{}, fmt.Errorf("read commit %d: %w", latest, err)
	}
	return Commit{Version: latest, Manifest: data}, nil
}

func (s *LocalCommitStore) read(p string) ([]byte, error) {
	f, err := s.fs.OpenFile(p, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, info.Size())
	if _, err := f.ReadAt(buf, 0); err != nil && len(buf) > 0 {
		return nil, err
	}
	return buf, nil
}

// Commit implements CommitStore.
func (s *LocalCommitStore) Commit(_ context.Context, expected uint64, manifest []byte) (uint64, error) {
	next := expected + 1
	p := filepath.Join(s.dir, commitName(next))

	err := writeFileAtomic(s.fs, p, manifest, s.fs.Link)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, ErrConcurrentModification
		}
		return 0, fmt.Errorf("commit version %d: %w", next, err)
	}
	return next, nil
}
