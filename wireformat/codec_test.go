package wireformat

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.RegisterRecord("Point", []Field{
		{Name: "x", Shape: "i32"},
		{Name: "y", Shape: "i32"},
	}))
	require.NoError(t, r.RegisterEnum("Direction", []string{"North", "East", "South", "West"}))
	require.NoError(t, r.RegisterRecord("Step", []Field{
		{Name: "from", Shape: "Point"},
		{Name: "heading", Shape: "Direction"},
		{Name: "label", Shape: "option<string>"},
	}))
	return r
}

func TestEncode_Layout(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name  string
		shape string
		value any
		want  []byte
	}{
		{"u8", "u8", 7, []byte{7}},
		{"u16", "u16", uint16(0x0102), []byte{0x02, 0x01}},
		{"u32", "u32", 3, []byte{3, 0, 0, 0}},
		{"u64", "u64", uint64(1) << 40, []byte{0, 0, 0, 0, 0, 1, 0, 0}},
		{"i8 negative", "i8", -1, []byte{0xff}},
		{"i32 negative", "i32", int32(-2), []byte{0xfe, 0xff, 0xff, 0xff}},
		{"i64", "i64", int64(-1), []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
		{"bool true", "bool", true, []byte{1}},
		{"bool false", "bool", false, []byte{0}},
		{"f32", "f32", float32(1), []byte{0x00, 0x00, 0x80, 0x3f}},
		{"f64", "f64", 1.0, []byte{0, 0, 0, 0, 0, 0, 0xf0, 0x3f}},
		{"unit", "unit", nil, []byte{}},
		{"string", "string", "hi", []byte{2, 0, 0, 0, 0, 0, 0, 0, 'h', 'i'}},
		{"empty string", "string", "", []byte{0, 0, 0, 0, 0, 0, 0, 0}},
		{"bytes", "bytes", []byte{9, 8}, []byte{2, 0, 0, 0, 0, 0, 0, 0, 9, 8}},
		{"seq", "seq<u16>", []int{1, 2}, []byte{2, 0, 0, 0, 0, 0, 0, 0, 1, 0, 2, 0}},
		{"option none", "option<u32>", nil, []byte{0}},
		{"option some", "option<u32>", 5, []byte{1, 5, 0, 0, 0}},
		{"tuple", "tuple<u8,bool>", []any{1, true}, []byte{1, 1}},
		{"array", "array<u8;3>", [3]uint8{1, 2, 3}, []byte{1, 2, 3}},
		{"enum by name", "Direction", "South", []byte{2, 0, 0, 0}},
		{"enum by index", "Direction", 3, []byte{3, 0, 0, 0}},
		{"record map", "Point", map[string]any{"x": 1, "y": -1}, []byte{1, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Encode(tt.shape, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, append([]byte{}, got...))
		})
	}
}

func TestEncode_RecordFieldOrder(t *testing.T) {
	r := newTestRegistry(t)

	// Struct field order differs from the declaration; declaration order wins.
	type point struct {
		Y int32
		X int32
	}
	got, err := r.Encode("Point", point{X: 1, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 2, 0, 0, 0}, got)

	type tagged struct {
		Horizontal int32 `wire:"x"`
		Vertical   int32 `wire:"y"`
	}
	got, err = r.Encode("Point", tagged{Horizontal: 1, Vertical: 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 2, 0, 0, 0}, got)
}

func TestRoundTrip(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		shape string
		value any
		want  any
	}{
		{"u32", 42, uint32(42)},
		{"i16", -300, int16(-300)},
		{"f64", math.Pi, math.Pi},
		{"string", "größe", "größe"},
		{"seq<string>", []string{"a", "bc"}, []any{"a", "bc"}},
		{"option<option<u8>>", nil, nil},
		{"seq<option<u8>>", []any{nil, 1}, []any{nil, uint8(1)}},
		{"tuple<i32,string>", []any{-1, "x"}, []any{int32(-1), "x"}},
		{
			"Step",
			map[string]any{"from": map[string]any{"x": 3, "y": 4}, "heading": "West", "label": "door"},
			map[string]any{"from": map[string]any{"x": int32(3), "y": int32(4)}, "heading": "West", "label": "door"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.shape, func(t *testing.T) {
			data, err := r.Encode(tt.shape, tt.value)
			require.NoError(t, err)

			got, err := r.Decode(tt.shape, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := r.Encode(tt.shape, got)
			require.NoError(t, err)
			assert.Equal(t, data, again, "re-encoding a decoded value must be byte identical")
		})
	}
}

func TestEncode_JSONNumbers(t *testing.T) {
	r := NewRegistry()

	got, err := r.Encode("tuple<u32,i8,f32>", []any{json.Number("7"), float64(-3), json.Number("0.5")})
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 0, 0, 0, 0xfd, 0, 0, 0, 0x3f}, got)

	got, err = r.Encode("tuple<u32,i16>", []any{json.Number("3.0"), json.Number("-2e1")})
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 0, 0, 0, 0xec, 0xff}, got)

	_, err = r.Encode("u32", json.Number("3.5"))
	assert.ErrorContains(t, err, "is not a u32")
	_, err = r.Encode("i8", json.Number("1e3"))
	assert.ErrorContains(t, err, "is not an i8")
	_, err = r.Encode("u8", json.Number("256"))
	assert.ErrorContains(t, err, "does not fit u8")
}

func TestEncode_Errors(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name     string
		shape    string
		value    any
		contains string
	}{
		{"overflow", "u8", uint16(256), "overflows"},
		{"negative unsigned", "u32", -1, "out of range"},
		{"fractional", "i32", 1.5, "is not an i32"},
		{"wrong kind", "bool", "yes", "cannot use string as bool"},
		{"unknown variant", "Direction", "Up", "no variant"},
		{"variant index", "Direction", 4, "no variant 4"},
		{"array length", "array<u8;2>", []int{1}, "needs 2 elements"},
		{"tuple length", "tuple<u8,u8>", []int{1, 2, 3}, "needs 2 elements"},
		{"missing field", "Point", map[string]any{"x": 1}, "y: missing field"},
		{"unknown field", "Point", map[string]any{"x": 1, "y": 2, "z": 3}, `no field "z"`},
		{"nested path", "seq<Point>", []any{map[string]any{"x": 1, "y": "a"}}, "[0].y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Encode(tt.shape, tt.value)
			require.Error(t, err)
			var ee *EncodeError
			require.True(t, errors.As(err, &ee))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestEncode_UnknownShape(t *testing.T) {
	_, err := NewRegistry().Encode("seq<Missing>", nil)
	assert.ErrorIs(t, err, ErrUnknownShape)
}

func TestDecode_Errors(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name  string
		shape string
		data  []byte
		is    error
	}{
		{"short u32", "u32", []byte{1, 2}, ErrUnexpectedEOF},
		{"trailing", "u8", []byte{1, 2}, ErrTrailingBytes},
		{"string past end", "string", []byte{9, 0, 0, 0, 0, 0, 0, 0, 'a'}, nil},
		{"huge seq", "seq<u32>", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, nil},
		{"bad bool", "bool", []byte{2}, nil},
		{"bad option tag", "option<u8>", []byte{7, 1}, nil},
		{"bad utf8", "string", []byte{1, 0, 0, 0, 0, 0, 0, 0, 0xff}, nil},
		{"bad variant", "Direction", []byte{9, 0, 0, 0}, nil},
		{"empty", "Point", nil, ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Decode(tt.shape, tt.data)
			require.Error(t, err)
			var de *DecodeError
			require.True(t, errors.As(err, &de))
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestDecode_ZeroSizedSeqBounded(t *testing.T) {
	r := NewRegistry()

	data, err := r.Encode("seq<unit>", make([]any, 3))
	require.NoError(t, err)
	got, err := r.Decode("seq<unit>", data)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	e := NewEncoder()
	e.PutLen(maxZeroSizedElems + 1)
	_, err = r.Decode("seq<unit>", e.Bytes())
	assert.Error(t, err)
}

func TestRecursiveRecord(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterRecord("Tree", []Field{
		{Name: "value", Shape: "u8"},
		{Name: "children", Shape: "seq<Tree>"},
	}))

	tree := map[string]any{
		"value": 1,
		"children": []any{
			map[string]any{"value": 2, "children": []any{}},
		},
	}
	data, err := r.Encode("Tree", tree)
	require.NoError(t, err)

	got, err := r.Decode("Tree", data)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"value": uint8(1),
		"children": []any{
			map[string]any{"value": uint8(2), "children": []any{}},
		},
	}, got)
}

func TestDecode_NestingBounded(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterRecord("List", []Field{{Name: "next", Shape: "option<List>"}}))

	shallow := append(bytes.Repeat([]byte{1}, MaxDepth-1), 0)
	_, err := r.Decode("List", shallow)
	require.NoError(t, err)

	deep := append(bytes.Repeat([]byte{1}, 1<<20), 0)
	_, err = r.Decode("List", deep)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, ErrTooDeep)
	assert.Equal(t, MaxDepth, de.Offset)

	d := NewDecoder(shallow)
	c, err := r.Lookup("List")
	require.NoError(t, err)
	_, err = c.Decode(d)
	require.NoError(t, err)
	assert.Zero(t, d.depth, "every level is released")
}

func TestRegistry_RejectsRecordContainingItself(t *testing.T) {
	r := NewRegistry()

	err := r.RegisterRecord("Node", []Field{{Name: "inner", Shape: "Node"}})
	assert.ErrorIs(t, err, ErrRecursiveShape)
	assert.False(t, r.Has("Node"))

	err = r.RegisterRecord("Pair", []Field{{Name: "both", Shape: "tuple<u8,array<Pair;2>>"}})
	assert.ErrorIs(t, err, ErrRecursiveShape)

	require.NoError(t, r.RegisterRecord("Ping", []Field{{Name: "pong", Shape: "Pong"}}))
	err = r.RegisterRecord("Pong", []Field{{Name: "ping", Shape: "tuple<Ping,u8>"}})
	assert.ErrorIs(t, err, ErrRecursiveShape)
	assert.ErrorContains(t, err, "Pong -> Ping -> Pong")

	require.NoError(t, r.RegisterRecord("Chain", []Field{{Name: "rest", Shape: "option<Chain>"}, {Name: "none", Shape: "array<Chain;0>"}}))
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := newTestRegistry(t)

	assert.Error(t, r.RegisterRecord("u32", nil), "builtin names are reserved")
	assert.Error(t, r.RegisterRecord("Point", nil), "duplicates are rejected")
	assert.Error(t, r.RegisterRecord("Bad", []Field{{Name: "a", Shape: "u8"}, {Name: "a", Shape: "u8"}}))
	assert.Error(t, r.RegisterRecord("Bad", []Field{{Name: "a", Shape: "seq<"}}))
	assert.Error(t, r.RegisterEnum("Empty", nil))
	assert.Error(t, r.RegisterEnum("Dup", []string{"A", "A"}))

	assert.True(t, r.Has("Point"))
	assert.Equal(t, []string{"Direction", "Point", "Step"}, r.Names())
}

func TestRegistry_CachesComposites(t *testing.T) {
	r := newTestRegistry(t)

	a, err := r.Lookup("seq<option<Point>>")
	require.NoError(t, err)
	b, err := r.Lookup("seq< option<Point> >")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, "seq<option<Point>>", a.Shape())
}

func TestDecodeInto(t *testing.T) {
	r := newTestRegistry(t)

	type point struct {
		X int
		Y int64
	}
	type step struct {
		From    point
		Heading string
		Label   *string
	}

	data, err := r.Encode("Step", map[string]any{
		"from":    map[string]any{"x": 3, "y": -4},
		"heading": "North",
		"label":   nil,
	})
	require.NoError(t, err)

	var got step
	require.NoError(t, r.DecodeInto("Step", data, &got))
	assert.Equal(t, step{From: point{X: 3, Y: -4}, Heading: "North"}, got)

	data, err = r.Encode("seq<tuple<u8,string>>", []any{[]any{1, "a"}, []any{2, "b"}})
	require.NoError(t, err)
	var pairs []struct {
		N uint16
		S string
	}
	require.NoError(t, r.DecodeInto("seq<tuple<u8,string>>", data, &pairs))
	require.Len(t, pairs, 2)
	assert.Equal(t, uint16(2), pairs[1].N)
	assert.Equal(t, "b", pairs[1].S)

	var small int8
	data, err = r.Encode("u32", 300)
	require.NoError(t, err)
	assert.Error(t, r.DecodeInto("u32", data, &small))

	assert.Error(t, r.DecodeInto("u32", data, small), "non-pointer target")
}

func TestLocator(t *testing.T) {
	loc := OutputLocator{Address: 2048, Size: 4}
	b := EncodeLocator(loc)
	assert.Equal(t, []byte{0x00, 0x08, 0, 0, 4, 0, 0, 0}, b)
	assert.Len(t, b, LocatorSize)

	got, err := DecodeLocator(b)
	require.NoError(t, err)
	assert.Equal(t, loc, got)
	assert.Equal(t, uint64(2052), got.End())

	neg, err := DecodeLocator([]byte{0xff, 0xff, 0xff, 0xff, 1, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, int32(-1), neg.Address)

	_, err = DecodeLocator(b[:5])
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
	_, err = DecodeLocator(append(b, 0))
	assert.ErrorIs(t, err, ErrTrailingBytes)
}
