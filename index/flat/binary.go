package flat

import (
	"errors"
	"fmt"

	"github.com/hupe1980/ccvec/distance"
	"github.com/hupe1980/ccvec/internal/conv"
)

// Payload layout:
//
//	[dimension u32][metric u8][normalize u8][count u32][count*dimension f32]

// MarshalBinary implements encoding.BinaryMarshaler.
func (f *Flat) MarshalBinary() ([]byte, error) {
	dim, err := conv.IntToUint32(f.dimension)
	if err != nil {
		return nil, err
	}
	count, err := conv.IntToUint32(f.Len())
	if err != nil {
		return nil, err
	}

	w := conv.NewWriter(10 + 4*len(f.data))
	w.Uint32(dim)
	w.Uint8(uint8(f.opts.Metric))
	w.Uint8(boolToUint8(f.opts.NormalizeVectors))
	w.Uint32(count)
	w.Float32s(f.data)
	return w.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (f *Flat) UnmarshalBinary(data []byte) error {
	r := conv.NewReader(data)

	dim := int(r.Uint32())
	metric := distance.Metric(r.Uint8())
	normalize := r.Uint8()
	count := int(r.Uint32())
	if err := r.Err(); err != nil {
		return err
	}

	if dim <= 0 {
		return fmt.Errorf("flat: invalid dimension %d", dim)
	}
	if normalize > 1 {
		return fmt.Errorf("flat: invalid normalize flag %d", normalize)
	}
	if r.Remaining() != count*dim*4 {
		return fmt.Errorf("flat: payload holds %d bytes, want %d", r.Remaining(), count*dim*4)
	}

	score, err := distance.Provider(metric)
	if err != nil {
		return err
	}

	f.dimension = dim
	f.opts = Options{Metric: metric, NormalizeVectors: normalize == 1}
	f.score = score
	f.data = r.Float32s(count * dim)
	if r.Err() != nil {
		return errors.Join(errors.New("flat: truncated vectors"), r.Err())
	}
	return nil
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
