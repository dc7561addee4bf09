// Package compress provides the payload compression used by persisted index blobs.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type defines the compression algorithm used.
type Type uint8

const (
	// None stores the payload as-is.
	None Type = 0
	// LZ4 is fast block compression, good for frequently loaded indexes.
	LZ4 Type = 1
	// ZSTD has a better ratio, good for large cold indexes.
	ZSTD Type = 2
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Parse parses the string form of a compression type.
func Parse(s string) (Type, error) {
	switch s {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("unknown compression %q", s)
	}
}

// ErrCorrupt is returned when a compressed frame cannot be decoded.
var ErrCorrupt = errors.New("compress: corrupt frame")

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Frame layout: [Type uint8][UncompressedSize uint32][Data...]
// A frame whose compressed form would not be smaller is stored with Type None.
const frameHeaderSize = 5

// Encode compresses data with t and returns a self-describing frame.
func Encode(data []byte, t Type) ([]byte, error) {
	var body []byte

	switch t {
	case None:
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		// n == 0 means incompressible
		if n > 0 {
			body = buf[:n]
		}
	case ZSTD:
		enc := getZstdEncoder()
		body = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("compress: unsupported type %v", t)
	}

	if body == nil || len(body) >= len(data) {
		t = None
		body = data
	}

	out := make([]byte, frameHeaderSize+len(body))
	out[0] = byte(t)
	binary.LittleEndian.PutUint32(out[1:], uint32(len(data)))
	copy(out[frameHeaderSize:], body)
	return out, nil
}

// Decode reverses Encode.
func Decode(frame []byte) ([]byte, error) {
	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("%w: frame too small", ErrCorrupt)
	}

	t := Type(frame[0])
	size := binary.LittleEndian.Uint32(frame[1:])
	body := frame[frameHeaderSize:]

	switch t {
	case None:
		if uint32(len(body)) != size {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupt)
		}
		return body, nil
	case LZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(body, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if uint32(len(out)) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %d", ErrCorrupt, t)
	}
}
