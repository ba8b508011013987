package wireformat

import (
	"encoding/binary"
	"math"
)

// Encoder appends fixed-width little-endian values to a byte buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the encoded bytes.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Reset empties the buffer, keeping its storage.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

func (e *Encoder) PutU8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) PutU16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

func (e *Encoder) PutU32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) PutU64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *Encoder) PutBool(v bool) {
	if v {
		e.PutU8(1)
		return
	}
	e.PutU8(0)
}

func (e *Encoder) PutF32(v float32) {
	e.PutU32(math.Float32bits(v))
}

func (e *Encoder) PutF64(v float64) {
	e.PutU64(math.Float64bits(v))
}

// PutLen writes a sequence length prefix.
func (e *Encoder) PutLen(n int) {
	e.PutU64(uint64(n))
}

// PutBytes writes a length-prefixed byte string.
func (e *Encoder) PutBytes(b []byte) {
	e.PutLen(len(b))
	e.buf = append(e.buf, b...)
}

// PutRaw writes b with no prefix.
func (e *Encoder) PutRaw(b []byte) {
	e.buf = append(e.buf, b...)
}
