package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C(t *testing.T) {
	data := []byte("123456789")

	// Standard test vector.
	assert.Equal(t, uint32(0xE3069283), CRC32C(data))

	assert.NoError(t, Verify(data, 0xE3069283))
	assert.ErrorContains(t, Verify(data[1:], 0xE3069283), "checksum mismatch")
}

func TestBase64(t *testing.T) {
	// 0xE3069283 big-endian.
	assert.Equal(t, "4waSgw==", Base64([]byte("123456789")))
	assert.Equal(t, "AAAAAA==", Base64(nil))
}
