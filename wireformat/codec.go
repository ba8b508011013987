package wireformat

import (
	"fmt"
	"reflect"
	"strconv"
	"unicode/utf8"
)

// Codec encodes and decodes values of one shape.
//
// Decode returns canonical Go values: bool, the sized integer and float
// types, string, []byte, []any for seq, tuple and array, map[string]any for
// records, the variant name for enums and nil for unit and absent options.
type Codec interface {
	// Shape returns the canonical shape expression the codec serves.
	Shape() string
	// MinSize is a lower bound on the encoded size of any value. Zero is
	// always a valid answer.
	MinSize() int
	Encode(e *Encoder, v any) error
	Decode(d *Decoder) (any, error)
}

type unitCodec struct{}

func (unitCodec) Shape() string { return "unit" }
func (unitCodec) MinSize() int  { return 0 }

func (unitCodec) Encode(_ *Encoder, v any) error {
	if v == nil || isNilPointer(v) {
		return nil
	}
	rv, _ := indirect(reflect.ValueOf(v))
	if rv.Kind() == reflect.Struct && rv.NumField() == 0 {
		return nil
	}
	return fmt.Errorf("cannot use %T as unit", v)
}

func (unitCodec) Decode(*Decoder) (any, error) { return nil, nil }

type boolCodec struct{}

func (boolCodec) Shape() string { return "bool" }
func (boolCodec) MinSize() int  { return 1 }

func (boolCodec) Encode(e *Encoder, v any) error {
	rv, ok := indirect(reflect.ValueOf(v))
	if !ok || rv.Kind() != reflect.Bool {
		return fmt.Errorf("cannot use %T as bool", v)
	}
	e.PutBool(rv.Bool())
	return nil
}

func (boolCodec) Decode(d *Decoder) (any, error) { return d.Bool() }

type uintCodec struct{ bits int }

func (c uintCodec) Shape() string { return "u" + strconv.Itoa(c.bits) }
func (c uintCodec) MinSize() int  { return c.bits / 8 }

func (c uintCodec) Encode(e *Encoder, v any) error {
	u, err := toUint(deref(v), c.bits)
	if err != nil {
		return err
	}
	switch c.bits {
	case 8:
		e.PutU8(uint8(u))
	case 16:
		e.PutU16(uint16(u))
	case 32:
		e.PutU32(uint32(u))
	default:
		e.PutU64(u)
	}
	return nil
}

func (c uintCodec) Decode(d *Decoder) (any, error) {
	switch c.bits {
	case 8:
		return d.U8()
	case 16:
		return d.U16()
	case 32:
		return d.U32()
	}
	return d.U64()
}

type intCodec struct{ bits int }

func (c intCodec) Shape() string { return "i" + strconv.Itoa(c.bits) }
func (c intCodec) MinSize() int  { return c.bits / 8 }

func (c intCodec) Encode(e *Encoder, v any) error {
	i, err := toInt(deref(v), c.bits)
	if err != nil {
		return err
	}
	switch c.bits {
	case 8:
		e.PutU8(uint8(int8(i)))
	case 16:
		e.PutU16(uint16(int16(i)))
	case 32:
		e.PutU32(uint32(int32(i)))
	default:
		e.PutU64(uint64(i))
	}
	return nil
}

func (c intCodec) Decode(d *Decoder) (any, error) {
	switch c.bits {
	case 8:
		u, err := d.U8()
		return int8(u), err
	case 16:
		u, err := d.U16()
		return int16(u), err
	case 32:
		u, err := d.U32()
		return int32(u), err
	}
	u, err := d.U64()
	return int64(u), err
}

type floatCodec struct{ bits int }

func (c floatCodec) Shape() string { return "f" + strconv.Itoa(c.bits) }
func (c floatCodec) MinSize() int  { return c.bits / 8 }

func (c floatCodec) Encode(e *Encoder, v any) error {
	f, err := toFloat(deref(v))
	if err != nil {
		return err
	}
	if c.bits == 32 {
		e.PutF32(float32(f))
	} else {
		e.PutF64(f)
	}
	return nil
}

func (c floatCodec) Decode(d *Decoder) (any, error) {
	if c.bits == 32 {
		return d.F32()
	}
	return d.F64()
}

type stringCodec struct{}

func (stringCodec) Shape() string { return "string" }
func (stringCodec) MinSize() int  { return 8 }

func (stringCodec) Encode(e *Encoder, v any) error {
	rv, ok := indirect(reflect.ValueOf(v))
	if !ok || rv.Kind() != reflect.String {
		return fmt.Errorf("cannot use %T as string", v)
	}
	s := rv.String()
	e.PutLen(len(s))
	e.PutRaw([]byte(s))
	return nil
}

func (stringCodec) Decode(d *Decoder) (any, error) {
	b, err := d.Bytes()
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(b) {
		return nil, fmt.Errorf("invalid UTF-8 in string")
	}
	return string(b), nil
}

type bytesCodec struct{}

func (bytesCodec) Shape() string { return "bytes" }
func (bytesCodec) MinSize() int  { return 8 }

func (bytesCodec) Encode(e *Encoder, v any) error {
	switch b := v.(type) {
	case []byte:
		e.PutBytes(b)
		return nil
	case string:
		e.PutBytes([]byte(b))
		return nil
	}
	elems, ok := elements(v)
	if !ok {
		return fmt.Errorf("cannot use %T as bytes", v)
	}
	out := make([]byte, len(elems))
	for i, el := range elems {
		x, err := interfaceOf(el)
		if err != nil {
			return err
		}
		u, err := toUint(deref(x), 8)
		if err != nil {
			return withPath(err, "["+strconv.Itoa(i)+"]")
		}
		out[i] = byte(u)
	}
	e.PutBytes(out)
	return nil
}

func (bytesCodec) Decode(d *Decoder) (any, error) {
	b, err := d.Bytes()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

type seqCodec struct {
	elem Codec
}

func (c *seqCodec) Shape() string { return "seq<" + c.elem.Shape() + ">" }
func (c *seqCodec) MinSize() int  { return 8 }

func (c *seqCodec) Encode(e *Encoder, v any) error {
	elems, ok := elements(v)
	if !ok {
		return fmt.Errorf("cannot use %T as seq", v)
	}
	e.PutLen(len(elems))
	return encodeElements(e, c.elem, elems)
}

func (c *seqCodec) Decode(d *Decoder) (any, error) {
	n, err := d.Len(c.elem.MinSize())
	if err != nil {
		return nil, err
	}
	return decodeElements(d, c.elem, n)
}

type optionCodec struct {
	elem Codec
}

func (c *optionCodec) Shape() string { return "option<" + c.elem.Shape() + ">" }
func (c *optionCodec) MinSize() int  { return 1 }

func (c *optionCodec) Encode(e *Encoder, v any) error {
	if v == nil || isNilPointer(v) {
		e.PutU8(0)
		return nil
	}
	e.PutU8(1)
	return c.elem.Encode(e, deref(v))
}

func (c *optionCodec) Decode(d *Decoder) (any, error) {
	tag, err := d.U8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return nil, nil
	case 1:
		return c.elem.Decode(d)
	}
	return nil, fmt.Errorf("invalid option tag 0x%02x", tag)
}

type tupleCodec struct {
	elems []Codec
}

func (c *tupleCodec) Shape() string {
	s := "tuple<"
	for i, el := range c.elems {
		if i > 0 {
			s += ","
		}
		s += el.Shape()
	}
	return s + ">"
}

func (c *tupleCodec) MinSize() int {
	n := 0
	for _, el := range c.elems {
		n += el.MinSize()
	}
	return n
}

func (c *tupleCodec) Encode(e *Encoder, v any) error {
	var elems []reflect.Value
	rv, ok := indirect(reflect.ValueOf(v))
	switch {
	case ok && rv.Kind() == reflect.Struct:
		elems = make([]reflect.Value, rv.NumField())
		for i := range elems {
			elems[i] = rv.Field(i)
		}
	default:
		if elems, ok = elements(v); !ok {
			return fmt.Errorf("cannot use %T as tuple", v)
		}
	}
	if len(elems) != len(c.elems) {
		return fmt.Errorf("tuple needs %d elements, got %d", len(c.elems), len(elems))
	}
	for i, el := range elems {
		x, err := interfaceOf(el)
		if err != nil {
			return err
		}
		if err := c.elems[i].Encode(e, x); err != nil {
			return withPath(err, "["+strconv.Itoa(i)+"]")
		}
	}
	return nil
}

func (c *tupleCodec) Decode(d *Decoder) (any, error) {
	out := make([]any, len(c.elems))
	for i, el := range c.elems {
		v, err := el.Decode(d)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type arrayCodec struct {
	elem Codec
	n    int
}

func (c *arrayCodec) Shape() string {
	return "array<" + c.elem.Shape() + ";" + strconv.Itoa(c.n) + ">"
}

func (c *arrayCodec) MinSize() int { return c.n * c.elem.MinSize() }

func (c *arrayCodec) Encode(e *Encoder, v any) error {
	elems, ok := elements(v)
	if !ok {
		return fmt.Errorf("cannot use %T as array", v)
	}
	if len(elems) != c.n {
		return fmt.Errorf("array needs %d elements, got %d", c.n, len(elems))
	}
	return encodeElements(e, c.elem, elems)
}

func (c *arrayCodec) Decode(d *Decoder) (any, error) {
	return decodeElements(d, c.elem, c.n)
}

func encodeElements(e *Encoder, c Codec, elems []reflect.Value) error {
	for i, el := range elems {
		x, err := interfaceOf(el)
		if err != nil {
			return err
		}
		if err := c.Encode(e, x); err != nil {
			return withPath(err, "["+strconv.Itoa(i)+"]")
		}
	}
	return nil
}

func decodeElements(d *Decoder, c Codec, n int) ([]any, error) {
	out := make([]any, n)
	for i := range out {
		v, err := c.Decode(d)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// deref unwraps non-nil pointers so scalar codecs accept *T as well as T.
func deref(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer {
		return v
	}
	rv, ok := indirect(rv)
	if !ok || !rv.CanInterface() {
		return v
	}
	return rv.Interface()
}

var scalarCodecs = map[Kind]Codec{
	KindUnit:   unitCodec{},
	KindBool:   boolCodec{},
	KindU8:     uintCodec{bits: 8},
	KindU16:    uintCodec{bits: 16},
	KindU32:    uintCodec{bits: 32},
	KindU64:    uintCodec{bits: 64},
	KindI8:     intCodec{bits: 8},
	KindI16:    intCodec{bits: 16},
	KindI32:    intCodec{bits: 32},
	KindI64:    intCodec{bits: 64},
	KindF32:    floatCodec{bits: 32},
	KindF64:    floatCodec{bits: 64},
	KindString: stringCodec{},
	KindBytes:  bytesCodec{},
}
