// Package hash provides the CRC32C checksum guarding persisted index blobs
// and S3 uploads.
//
//	binary.LittleEndian.PutUint32(header[8:12], hash.CRC32C(frame))
//	...
//	if err := hash.Verify(frame, stored); err != nil { ... }
package hash
