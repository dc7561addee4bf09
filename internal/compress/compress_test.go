package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	data := bytes.Repeat([]byte("agent: thank you for calling. "), 200)

	for _, typ := range []Type{None, LZ4, ZSTD} {
		t.Run(typ.String(), func(t *testing.T) {
			frame, err := Encode(data, typ)
			require.NoError(t, err)
			if typ != None {
				assert.Less(t, len(frame), len(data))
			}

			got, err := Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestEncode_IncompressibleFallsBackToNone(t *testing.T) {
	data := []byte{0x01, 0x7f, 0x33}

	frame, err := Encode(data, ZSTD)
	require.NoError(t, err)
	assert.Equal(t, byte(None), frame[0])

	got, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := Decode([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCorrupt)

	frame, err := Encode(bytes.Repeat([]byte("x"), 1024), LZ4)
	require.NoError(t, err)

	_, err = Decode(frame[:len(frame)-3])
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Decode([]byte{9, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestParse(t *testing.T) {
	for _, s := range []string{"none", "lz4", "zstd"} {
		typ, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, typ.String())
	}
	_, err := Parse("gzip")
	assert.Error(t, err)
}
