// Package index defines the nearest-neighbor structures that back the
// persisted vector index.
//
// # Implementations
//
//   - flat: exact search over every stored vector (L2 or cosine)
//   - hnsw: approximate Hierarchical Navigable Small World graph (L2)
//
// # Encoding
//
// Encode wraps an index's own binary form in a small self-describing header:
//
//	[magic u32][format u8][kind u8][reserved u16][crc32c u32][frame...]
//
// The frame is produced by internal/compress and the checksum covers it.
// Decode rejects anything that fails these checks with ErrCorrupt, so a
// damaged blob is never mistaken for an empty index.
package index
