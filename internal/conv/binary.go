package conv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer is returned by Reader when the input ends early.
var ErrShortBuffer = errors.New("conv: short buffer")

// EncodeFloat32s encodes vec as a little-endian sequence of IEEE 754 float32
// values without a length prefix.
func EncodeFloat32s(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeFloat32s decodes a blob produced by EncodeFloat32s.
func DecodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("conv: invalid float32 blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// Writer appends little-endian fixed-width values to a byte slice.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with the given capacity hint.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded bytes.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Uint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) Uint32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *Writer) Uint64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *Writer) Float64(v float64) { w.Uint64(math.Float64bits(v)) }

// Float32s writes vec without a length prefix.
func (w *Writer) Float32s(vec []float32) {
	for _, v := range vec {
		w.Uint32(math.Float32bits(v))
	}
}

// Reader consumes little-endian fixed-width values from a byte slice.
//
// The first failure is sticky: subsequent reads return zero values and Err
// reports the failure.
type Reader struct {
	buf []byte
	err error
}

// NewReader returns a Reader over b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Err returns the first read failure.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf) < n {
		r.err = fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, len(r.buf))
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *Reader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) Uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) Float64() float64 { return math.Float64frombits(r.Uint64()) }

// Float32s reads n float32 values.
func (r *Reader) Float32s(n int) []float32 {
	if n < 0 || n > math.MaxInt/4 {
		r.take(-1)
		return nil
	}
	b := r.take(n * 4)
	if b == nil {
		return nil
	}
	vec, _ := DecodeFloat32s(b)
	return vec
}
