// Package codec implements the length-prefixed little-endian binary
// primitives shared by every persisted structure in embedstore: blocks
// and the on-disk HNSW index.
//
// Forward compatibility is not a goal. The codec itself writes no schema
// tag: the HNSW index file starts with a magic string and version that
// its decoder checks and refuses on mismatch, while block files carry no
// tag at all. There is no versioned migration path.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ErrCorrupt is returned whenever a length prefix overruns the remaining
// buffer, a schema tag mismatches, or a float is non-finite where the
// schema forbids it.
type ErrCorrupt struct {
	Reason string
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("codec: corrupt payload: %s", e.Reason)
}

func corrupt(format string, args ...interface{}) error {
	return &ErrCorrupt{Reason: fmt.Sprintf(format, args...)}
}

// Encoder accumulates a little-endian, length-prefixed byte stream.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 256)}
}

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return len(e.buf) }

// PutU8 appends a single byte.
func (e *Encoder) PutU8(v uint8) { e.buf = append(e.buf, v) }

// PutU32 appends a fixed-width, little-endian uint32.
func (e *Encoder) PutU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// PutU64 appends a fixed-width, little-endian uint64.
func (e *Encoder) PutU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// PutF32 appends an IEEE-754 single-precision float.
func (e *Encoder) PutF32(v float32) {
	e.PutU32(math.Float32bits(v))
}

// PutBytes appends a u64 length prefix followed by the raw bytes.
func (e *Encoder) PutBytes(b []byte) {
	e.PutU64(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

// PutString appends a u64 length prefix followed by the UTF-8 bytes.
func (e *Encoder) PutString(s string) {
	e.PutBytes([]byte(s))
}

// PutCount appends a u64 element count, for sequences and sets the caller
// encodes element-by-element afterward.
func (e *Encoder) PutCount(n int) {
	e.PutU64(uint64(n))
}

// Decoder reads sequentially from a fixed byte slice, tracking how many
// bytes have been consumed so callers can report their own consumed count.
type Decoder struct {
	data []byte
	off  int
}

// NewDecoder wraps data for sequential decoding starting at offset 0.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int { return d.off }

// Remaining returns the number of unconsumed bytes.
func (d *Decoder) Remaining() int { return len(d.data) - d.off }

func (d *Decoder) need(n int) error {
	if n < 0 || d.off+n > len(d.data) {
		return corrupt("need %d bytes at offset %d, have %d", n, d.off, len(d.data))
	}
	return nil
}

// U8 reads a single byte.
func (d *Decoder) U8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.data[d.off]
	d.off++
	return v, nil
}

// U32 reads a fixed-width, little-endian uint32.
func (d *Decoder) U32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v, nil
}

// U64 reads a fixed-width, little-endian uint64.
func (d *Decoder) U64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.data[d.off:])
	d.off += 8
	return v, nil
}

// F32 reads an IEEE-754 float. If requireFinite is set, NaN and +/-Inf are
// rejected as corruption.
func (d *Decoder) F32(requireFinite bool) (float32, error) {
	bits, err := d.U32()
	if err != nil {
		return 0, err
	}
	v := math.Float32frombits(bits)
	if requireFinite && (math.IsNaN(float64(v)) || math.IsInf(float64(v), 0)) {
		return 0, corrupt("non-finite float at offset %d", d.off-4)
	}
	return v, nil
}

// Bytes reads a u64 length prefix followed by that many raw bytes.
func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.U64()
	if err != nil {
		return nil, err
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	v := make([]byte, n)
	copy(v, d.data[d.off:d.off+int(n)])
	d.off += int(n)
	return v, nil
}

// String reads a u64 length prefix followed by that many UTF-8 bytes.
func (d *Decoder) String() (string, error) {
	b, err := d.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Count reads a u64 sequence/set element count.
func (d *Decoder) Count() (int, error) {
	n, err := d.U64()
	if err != nil {
		return 0, err
	}
	if n > uint64(d.Remaining())+uint64(d.off) {
		// A count larger than the entire buffer can never be satisfied;
		// catch it early instead of allocating or looping on garbage.
		return 0, corrupt("implausible element count %d", n)
	}
	return int(n), nil
}
