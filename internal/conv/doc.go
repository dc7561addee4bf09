// Package conv provides safe integer conversion and the little-endian
// binary helpers used by the index payloads and raw vector blobs.
//
// Use cases:
//   - Validating untrusted data from blobs (counts, dimensions, lengths)
//   - Converting between Go's int (platform-dependent) and fixed-width types
//   - Encoding float32 vectors as dense little-endian IEEE 754 sequences
package conv
