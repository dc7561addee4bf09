// Package blobstore provides the storage abstraction for persisted index
// blobs and the version token that commits them.
//
// BlobStore is the interface for reading and writing immutable data blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and ephemeral use
//   - LocalStore: local filesystem with atomic temp-file + rename writes
//   - CachingStore: LRU read cache in front of any BlobStore
//   - s3.Store: Amazon S3
//   - minio.Store: S3-compatible object storage via minio-go
//
// # Commits
//
// Object stores cannot atomically replace several blobs at once. A
// CommitStore supplies the missing compare-and-swap on a monotonically
// increasing version:
//
//	type CommitStore interface {
//	    Latest(ctx) (Commit, error)
//	    Commit(ctx, expected, manifest) (uint64, error)
//	}
//
// Writers put new blobs under attempt-unique names and then commit a manifest
// that references them. A lost race surfaces as ErrConcurrentModification and
// never overwrites the winner's blobs.
//
//   - MemoryCommitStore: mutex-guarded version counter
//   - LocalCommitStore: one file per version, created with link(2) semantics
//   - s3.DDBCommitStore: DynamoDB conditional writes
package blobstore
