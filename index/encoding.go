package index

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/ccvec/internal/compress"
	"github.com/hupe1980/ccvec/internal/hash"
)

const (
	magic        uint32 = 0x58564343 // "CCVX"
	formatV1     uint8  = 1
	headerSize          = 12
	maxFrameSize        = 1 << 31
)

// Encode serializes idx into a checksummed, optionally compressed blob.
//
// The output is a pure function of the index contents and the compression
// type, so re-encoding an unchanged index yields identical bytes.
func Encode(idx Index, c compress.Type) ([]byte, error) {
	payload, err := idx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal %s index: %w", idx.Kind(), err)
	}

	frame, err := compress.Encode(payload, c)
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerSize+len(frame))
	binary.LittleEndian.PutUint32(out[0:4], magic)
	out[4] = formatV1
	out[5] = uint8(idx.Kind())
	binary.LittleEndian.PutUint32(out[8:12], hash.CRC32C(frame))
	copy(out[headerSize:], frame)
	return out, nil
}

// Decode reconstructs an index from a blob produced by Encode.
//
// Every structural failure is reported as ErrCorrupt.
func Decode(data []byte) (Index, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: short header (%d bytes)", ErrCorrupt, len(data))
	}
	if m := binary.LittleEndian.Uint32(data[0:4]); m != magic {
		return nil, fmt.Errorf("%w: invalid magic 0x%08x", ErrCorrupt, m)
	}
	if data[4] != formatV1 {
		return nil, fmt.Errorf("%w: unsupported format %d", ErrCorrupt, data[4])
	}

	frame := data[headerSize:]
	if len(frame) > maxFrameSize {
		return nil, fmt.Errorf("%w: frame too large", ErrCorrupt)
	}
	if err := hash.Verify(frame, binary.LittleEndian.Uint32(data[8:12])); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	loader, err := lookup(Kind(data[5]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	payload, err := compress.Decode(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	idx := loader()
	if err := idx.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return idx, nil
}
