package wireformat

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Decoder reads fixed-width little-endian values from a byte slice. It never
// reads past the end of its input.
type Decoder struct {
	data  []byte
	off   int
	depth int
}

// NewDecoder returns a Decoder over data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Offset returns the number of bytes consumed.
func (d *Decoder) Offset() int {
	return d.off
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || n > d.Remaining() {
		return nil, ErrUnexpectedEOF
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *Decoder) U8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) U16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Decoder) U32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) U64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Decoder) Bool() (bool, error) {
	b, err := d.U8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("invalid bool byte 0x%02x", b)
}

func (d *Decoder) F32() (float32, error) {
	v, err := d.U32()
	return math.Float32frombits(v), err
}

func (d *Decoder) F64() (float64, error) {
	v, err := d.U64()
	return math.Float64frombits(v), err
}

// Len reads a sequence length prefix. Lengths larger than the remaining input
// are rejected when every element takes at least minElemSize bytes.
func (d *Decoder) Len(minElemSize int) (int, error) {
	n, err := d.U64()
	if err != nil {
		return 0, err
	}
	limit := uint64(maxZeroSizedElems)
	if minElemSize > 0 {
		limit = uint64(d.Remaining() / minElemSize)
	}
	if n > limit {
		return 0, fmt.Errorf("length %d exceeds remaining input", n)
	}
	return int(n), nil
}

// Bytes reads a length-prefixed byte string. The result aliases the input.
func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.Len(1)
	if err != nil {
		return nil, err
	}
	return d.take(n)
}

// enter records one more level of record nesting and fails once MaxDepth is
// exceeded. Every call that succeeds must be paired with leave.
func (d *Decoder) enter() error {
	if d.depth >= MaxDepth {
		return fmt.Errorf("%w: more than %d levels", ErrTooDeep, MaxDepth)
	}
	d.depth++
	return nil
}

func (d *Decoder) leave() {
	d.depth--
}

// Finish reports ErrTrailingBytes if input remains.
func (d *Decoder) Finish() error {
	if d.Remaining() != 0 {
		return fmt.Errorf("%w: %d", ErrTrailingBytes, d.Remaining())
	}
	return nil
}

// MaxDepth bounds how deeply records may nest inside one decoded value.
// Recursive shapes always pass through a record, so the bound also caps the
// decoder's stack use on hostile input.
const MaxDepth = 128

// maxZeroSizedElems bounds sequences whose elements occupy no bytes, which
// would otherwise let an eight-byte prefix request billions of iterations.
const maxZeroSizedElems = 1 << 16
