// Package engine implements the persisted index pair and the operations on it.
//
// # Persisted State
//
// The index blob and the id-ordering table are written under attempt-unique
// keys and published together by a manifest committed through a
// blobstore.CommitStore. A reader resolves one manifest and therefore always
// observes a matching pair:
//
//	faiss/index-<version>-<uuid>.bin     encoded index (see index.Encode)
//	faiss/id_map-<version>-<uuid>.json   JSON array of record ids
//	embeddings/<id>.vec                  optional raw vector, little-endian float32
//
// # Writers
//
// Writer.Append runs load, add and save inside a retry loop. A save against
// a stale version fails with ErrVersionConflict and the whole sequence is
// retried with exponential backoff, so concurrent producers never lose an
// acknowledged insertion. An optional blobstore.Locker serializes writers in
// front of the version check.
//
// # Search
//
// Searcher embeds the query, loads one snapshot, asks the index for
// k*Oversample neighbors, resolves metadata concurrently and filters. Fewer
// than k results are returned when filtering discards too many candidates;
// the candidate window is never widened.
//
// BruteForce offers the same contract over a cosine scan of raw vectors.
package engine
