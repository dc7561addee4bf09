package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/ccvec/blobstore"
	"github.com/hupe1980/ccvec/codec"
	"github.com/hupe1980/ccvec/index"
	"github.com/hupe1980/ccvec/internal/conv"
	"github.com/hupe1980/ccvec/model"
)

const (
	indexBlobPrefix = "index-"
	indexBlobSuffix = ".bin"
	tableBlobPrefix = "id_map-"
	tableBlobSuffix = ".json"
	vectorPrefix    = "embeddings/"
	vectorSuffix    = ".vec"

	// loadAttempts bounds how often Load follows a moving latest commit
	// whose blobs were pruned under it.
	loadAttempts = 4

	confirmTimeout = 10 * time.Second
)

// errBlobMissing marks a manifest that references a deleted blob.
var errBlobMissing = errors.New("referenced blob is missing")

// Manifest is the committed description of one persisted pair.
type Manifest struct {
	Version     uint64      `json:"version"`
	IndexKey    string      `json:"index_key"`
	TableKey    string      `json:"table_key"`
	Count       int         `json:"count"`
	Kind        index.Kind  `json:"kind"`
	Dimension   int         `json:"dimension"`
	Scale       model.Scale `json:"scale"`
	Codec       string      `json:"codec"`
	CommittedAt time.Time   `json:"committed_at"`
}

// Snapshot is a private, mutable copy of one committed state.
type Snapshot struct {
	Index   index.Index
	Table   []model.RecordID
	Version uint64

	positions map[model.RecordID]model.Position
}

// Contains reports whether id is in the table.
func (s *Snapshot) Contains(id model.RecordID) bool {
	if s.positions == nil {
		s.positions = make(map[model.RecordID]model.Position, len(s.Table))
		for i, v := range s.Table {
			s.positions[v] = model.Position(i)
		}
	}
	_, ok := s.positions[id]
	return ok
}

// Add appends vector and id as one step.
func (s *Snapshot) Add(id model.RecordID, vector model.Vector) error {
	if s.Contains(id) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	pos, err := s.Index.Add(vector)
	if err != nil {
		return err
	}
	if int(pos) != len(s.Table) {
		return fmt.Errorf("%w: index assigned position %d to table slot %d", ErrIndexCorrupt, pos, len(s.Table))
	}
	s.Table = append(s.Table, id)
	s.positions[id] = pos
	return nil
}

// Store loads and saves the persisted pair as one versioned unit.
//
// Store is safe for concurrent use. Snapshots are private to the caller.
type Store struct {
	blobs     blobstore.BlobStore
	commits   blobstore.CommitStore
	dimension int
	opts      StoreOptions
	logger    *slog.Logger
}

// NewStore creates a Store over the given blob and commit stores.
func NewStore(blobs blobstore.BlobStore, commits blobstore.CommitStore, dimension int, optFns ...func(o *StoreOptions)) (*Store, error) {
	opts := DefaultStoreOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if dimension <= 0 {
		return nil, fmt.Errorf("engine: dimension must be positive, got %d", dimension)
	}
	if blobs == nil || commits == nil {
		return nil, errors.New("engine: blob store and commit store are required")
	}
	if opts.NewIndex == nil {
		opts.NewIndex = DefaultStoreOptions.NewIndex
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	return &Store{
		blobs:     blobs,
		commits:   commits,
		dimension: dimension,
		opts:      opts,
		logger:    loggerOrDiscard(opts.Logger),
	}, nil
}

// Dimension returns the configured vector dimension.
func (s *Store) Dimension() int { return s.dimension }

// Blobs returns the underlying blob store.
func (s *Store) Blobs() blobstore.BlobStore { return s.blobs }

func (s *Store) empty() (*Snapshot, error) {
	idx, err := s.opts.NewIndex(s.dimension)
	if err != nil {
		return nil, fmt.Errorf("engine: create index: %w", err)
	}
	if idx.Dimension() != s.dimension {
		return nil, &ErrDimensionMismatch{Expected: s.dimension, Actual: idx.Dimension()}
	}
	return &Snapshot{Index: idx, Table: []model.RecordID{}}, nil
}

func (s *Store) manifest(ctx context.Context) (Manifest, bool, error) {
	c, err := s.commits.Latest(ctx)
	if err != nil {
		return Manifest{}, false, fmt.Errorf("engine: read latest commit: %w", err)
	}
	if c.Version == 0 {
		return Manifest{}, false, nil
	}

	var m Manifest
	if err := codec.Default.Unmarshal(c.Manifest, &m); err != nil {
		return Manifest{}, false, fmt.Errorf("%w: manifest of version %d: %v", ErrIndexCorrupt, c.Version, err)
	}
	if m.Version != c.Version {
		return Manifest{}, false, fmt.Errorf("%w: manifest claims version %d, committed as %d", ErrIndexCorrupt, m.Version, c.Version)
	}
	return m, true, nil
}

func (s *Store) readBlob(ctx context.Context, key string) ([]byte, error) {
	data, err := blobstore.ReadAll(ctx, s.blobs, key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w: %s", ErrIndexCorrupt, errBlobMissing, key)
		}
		return nil, fmt.Errorf("engine: read %s: %w", key, err)
	}
	return data, nil
}

// Load returns the latest committed state. When nothing has been committed
// it returns an empty index and table at version 0.
//
// A blob missing under a manifest that has since been superseded was pruned
// while the load was in flight; Load then retries with the newer commit.
// Only a missing blob of a commit that is still the latest is corruption.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	var (
		missing error
		seen    uint64
	)
	for range loadAttempts {
		m, ok, err := s.manifest(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return s.empty()
		}
		if missing != nil && m.Version == seen {
			return nil, missing
		}

		snap, err := s.load(ctx, m)
		if !errors.Is(err, errBlobMissing) {
			return snap, err
		}
		s.logger.Debug("blob of loaded commit vanished, reloading", "version", m.Version, "error", err)
		missing, seen = err, m.Version
	}
	return nil, missing
}

func (s *Store) load(ctx context.Context, m Manifest) (*Snapshot, error) {
	data, err := s.readBlob(ctx, m.IndexKey)
	if err != nil {
		return nil, err
	}
	idx, err := index.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexCorrupt, m.IndexKey, err)
	}
	if idx.Dimension() != s.dimension {
		return nil, fmt.Errorf("%w: stored dimension %d, configured %d", ErrIndexCorrupt, idx.Dimension(), s.dimension)
	}

	data, err = s.readBlob(ctx, m.TableKey)
	if err != nil {
		return nil, err
	}
	c, ok := codec.ByName(m.Codec)
	if !ok {
		return nil, fmt.Errorf("%w: unknown table codec %q", ErrIndexCorrupt, m.Codec)
	}
	var table []model.RecordID
	if err := c.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexCorrupt, m.TableKey, err)
	}
	if table == nil {
		table = []model.RecordID{}
	}

	if len(table) != idx.Len() || len(table) != m.Count {
		return nil, fmt.Errorf("%w: table has %d ids, index %d vectors, manifest %d",
			ErrIndexCorrupt, len(table), idx.Len(), m.Count)
	}

	snap := &Snapshot{Index: idx, Table: table, Version: m.Version}
	snap.positions = make(map[model.RecordID]model.Position, len(table))
	for i, id := range table {
		if _, dup := snap.positions[id]; dup {
			return nil, fmt.Errorf("%w: id %s appears twice in table", ErrIndexCorrupt, id)
		}
		snap.positions[id] = model.Position(i)
	}

	s.logger.Debug("index loaded", "version", m.Version, "count", m.Count, "kind", m.Kind)
	return snap, nil
}

func (s *Store) blobKeys(version uint64) (indexKey string, tableKey string) {
	attempt := uuid.NewString()
	indexKey = fmt.Sprintf("%s%s%d-%s%s", s.opts.Prefix, indexBlobPrefix, version, attempt, indexBlobSuffix)
	tableKey = fmt.Sprintf("%s%s%d-%s%s", s.opts.Prefix, tableBlobPrefix, version, attempt, tableBlobSuffix)
	return indexKey, tableKey
}

// Save writes snap as version snap.Version+1 and returns the new version.
//
// It fails with ErrVersionConflict when another writer committed since snap
// was loaded. On success snap.Version is advanced.
func (s *Store) Save(ctx context.Context, snap *Snapshot) (uint64, error) {
	if len(snap.Table) != snap.Index.Len() {
		return 0, fmt.Errorf("%w: table has %d ids, index %d vectors", ErrIndexCorrupt, len(snap.Table), snap.Index.Len())
	}

	next := snap.Version + 1
	indexKey, tableKey := s.blobKeys(next)

	indexData, err := index.Encode(snap.Index, s.opts.Compression)
	if err != nil {
		return 0, fmt.Errorf("engine: encode index: %w", err)
	}
	tableData, err := s.opts.Codec.Marshal(snap.Table)
	if err != nil {
		return 0, fmt.Errorf("engine: encode table: %w", err)
	}

	if err := s.blobs.Put(ctx, indexKey, indexData); err != nil {
		return 0, fmt.Errorf("engine: write %s: %w", indexKey, err)
	}
	if err := s.blobs.Put(ctx, tableKey, tableData); err != nil {
		s.discard(ctx, indexKey)
		return 0, fmt.Errorf("engine: write %s: %w", tableKey, err)
	}

	manifest, err := codec.Default.Marshal(Manifest{
		Version:     next,
		IndexKey:    indexKey,
		TableKey:    tableKey,
		Count:       len(snap.Table),
		Kind:        snap.Index.Kind(),
		Dimension:   snap.Index.Dimension(),
		Scale:       snap.Index.Scale(),
		Codec:       s.opts.Codec.Name(),
		CommittedAt: time.Now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("engine: encode manifest: %w", err)
	}

	version, err := s.commits.Commit(ctx, snap.Version, manifest)
	if err != nil {
		if errors.Is(err, blobstore.ErrConcurrentModification) {
			s.discard(ctx, indexKey, tableKey)
			return 0, fmt.Errorf("%w: expected version %d", ErrVersionConflict, snap.Version)
		}
		// The write may have landed before the error surfaced, so the blobs
		// stay. Unreferenced ones are left for Prune.
		if s.committed(ctx, next, indexKey) {
			s.logger.Warn("commit reported an error but landed", "version", next, "error", err)
			snap.Version = next
			return next, nil
		}
		return 0, fmt.Errorf("engine: commit version %d: %w", next, err)
	}

	snap.Version = version
	s.logger.Debug("index saved", "version", version, "count", len(snap.Table))
	return version, nil
}

// committed reports whether the latest commit is version with indexKey. It
// runs even when ctx is already done.
func (s *Store) committed(ctx context.Context, version uint64, indexKey string) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), confirmTimeout)
	defer cancel()

	m, ok, err := s.manifest(ctx)
	if err != nil || !ok {
		return false
	}
	return m.Version == version && m.IndexKey == indexKey
}

// discard removes blobs of an attempt that will never be committed. Failures
// leave orphans for Prune.
func (s *Store) discard(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if err := s.blobs.Delete(ctx, k); err != nil {
			s.logger.Debug("discard orphan blob", "key", k, "error", err)
		}
	}
}

// Stats describes the latest commit without reading the index blobs.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	m, ok, err := s.manifest(ctx)
	if err != nil {
		return Stats{}, err
	}
	if !ok {
		snap, err := s.empty()
		if err != nil {
			return Stats{}, err
		}
		return Stats{
			Kind:      snap.Index.Kind(),
			Scale:     snap.Index.Scale(),
			Dimension: s.dimension,
		}, nil
	}
	return Stats{
		Version:     m.Version,
		Count:       m.Count,
		Kind:        m.Kind,
		Scale:       m.Scale,
		Dimension:   m.Dimension,
		CommittedAt: m.CommittedAt,
	}, nil
}

// blobVersion parses the version of an index or table blob name (without
// the store prefix).
func blobVersion(name string) (uint64, bool) {
	var rest string
	switch {
	case strings.HasPrefix(name, indexBlobPrefix) && strings.HasSuffix(name, indexBlobSuffix):
		rest = strings.TrimPrefix(name, indexBlobPrefix)
	case strings.HasPrefix(name, tableBlobPrefix) && strings.HasSuffix(name, tableBlobSuffix):
		rest = strings.TrimPrefix(name, tableBlobPrefix)
	default:
		return 0, false
	}
	v, _, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, false
	}
	version, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return version, true
}

// Prune deletes index and table blobs that belong to versions older than
// the newest keep versions. Blobs referenced by the latest commit and blobs
// of in-flight attempts are never deleted.
func (s *Store) Prune(ctx context.Context, keep int) (PruneResult, error) {
	keep = max(keep, 1)

	m, ok, err := s.manifest(ctx)
	if err != nil {
		return PruneResult{}, err
	}

	names, err := s.blobs.List(ctx, s.opts.Prefix)
	if err != nil {
		return PruneResult{}, fmt.Errorf("engine: list %s: %w", s.opts.Prefix, err)
	}

	var res PruneResult
	for _, name := range names {
		version, parsed := blobVersion(strings.TrimPrefix(name, s.opts.Prefix))
		if !parsed {
			continue
		}
		if ok && (name == m.IndexKey || name == m.TableKey) {
			res.Kept++
			continue
		}
		// Anything above latest-keep is either kept history or an attempt
		// that may still commit.
		if !ok || version+uint64(keep) > m.Version {
			res.Kept++
			continue
		}
		if err := s.blobs.Delete(ctx, name); err != nil {
			return res, fmt.Errorf("engine: delete %s: %w", name, err)
		}
		res.Deleted = append(res.Deleted, name)
	}

	s.logger.Info("pruned index blobs", "deleted", len(res.Deleted), "kept", res.Kept)
	return res, nil
}

// VectorKey returns the raw vector blob name of id.
func VectorKey(id model.RecordID) string {
	return vectorPrefix + id + vectorSuffix
}

// PutVector writes the raw vector blob of id.
func (s *Store) PutVector(ctx context.Context, id model.RecordID, vector model.Vector) error {
	if err := s.blobs.Put(ctx, VectorKey(id), conv.EncodeFloat32s(vector)); err != nil {
		return fmt.Errorf("engine: write vector %s: %w", id, err)
	}
	return nil
}

// Vector reads the raw vector blob of id.
func (s *Store) Vector(ctx context.Context, id model.RecordID) (model.Vector, error) {
	data, err := blobstore.ReadAll(ctx, s.blobs, VectorKey(id))
	if err != nil {
		return nil, err
	}
	vec, err := conv.DecodeFloat32s(data)
	if err != nil {
		return nil, fmt.Errorf("engine: decode vector %s: %w", id, err)
	}
	if len(vec) != s.dimension {
		return nil, &ErrDimensionMismatch{Expected: s.dimension, Actual: len(vec)}
	}
	return vec, nil
}
