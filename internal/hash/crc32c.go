package hash

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// Verify reports a mismatch between want and the checksum of data.
func Verify(data []byte, want uint32) error {
	if got := CRC32C(data); got != want {
		return fmt.Errorf("checksum mismatch (want 0x%08x, got 0x%08x)", want, got)
	}
	return nil
}

// Base64 returns the checksum of data in the form S3 expects for
// x-amz-checksum-crc32c: base64 of the big-endian sum.
func Base64(data []byte) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], CRC32C(data))
	return base64.StdEncoding.EncodeToString(b[:])
}
