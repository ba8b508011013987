package wireformat

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// toUint converts an integer-like Go value to a uint64 that fits in bits.
// Whole-valued floats and json.Number are accepted so that JSON-sourced
// arguments can be passed straight through.
func toUint(v any, bits int) (uint64, error) {
	hi := uint64(math.MaxUint64) >> (64 - bits)
	if n, ok := v.(json.Number); ok {
		u, err := strconv.ParseUint(string(n), 10, bits)
		if err == nil {
			return u, nil
		}
		if f, ferr := n.Float64(); ferr == nil && !isIntLiteral(n) {
			return toUint(f, bits)
		}
		return 0, fmt.Errorf("number %s does not fit u%d", n, bits)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > hi {
			return 0, fmt.Errorf("value %d overflows u%d", u, bits)
		}
		return u, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < 0 || uint64(i) > hi {
			return 0, fmt.Errorf("value %d out of range for u%d", i, bits)
		}
		return uint64(i), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < 0 || f >= math.Ldexp(1, bits) {
			return 0, fmt.Errorf("value %v is not a u%d", f, bits)
		}
		return uint64(f), nil
	}
	return 0, fmt.Errorf("cannot use %T as u%d", v, bits)
}

// toInt converts an integer-like Go value to an int64 that fits in bits.
func toInt(v any, bits int) (int64, error) {
	hi := int64(math.MaxInt64) >> (64 - bits)
	lo := -hi - 1
	if n, ok := v.(json.Number); ok {
		i, err := strconv.ParseInt(string(n), 10, bits)
		if err == nil {
			return i, nil
		}
		if f, ferr := n.Float64(); ferr == nil && !isIntLiteral(n) {
			return toInt(f, bits)
		}
		return 0, fmt.Errorf("number %s does not fit i%d", n, bits)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < lo || i > hi {
			return 0, fmt.Errorf("value %d out of range for i%d", i, bits)
		}
		return i, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > uint64(hi) {
			return 0, fmt.Errorf("value %d overflows i%d", u, bits)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < float64(lo) || f >= math.Ldexp(1, bits-1) {
			return 0, fmt.Errorf("value %v is not an i%d", f, bits)
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("cannot use %T as i%d", v, bits)
}

// isIntLiteral reports whether n is written without a fraction or exponent,
// in which case a failed integer parse means it is out of range.
func isIntLiteral(n json.Number) bool {
	return !strings.ContainsAny(string(n), ".eE")
}

// toFloat converts a numeric Go value to float64.
func toFloat(v any) (float64, error) {
	if n, ok := v.(json.Number); ok {
		return n.Float64()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("cannot use %T as a float", v)
}

// indirect follows pointers and interfaces. It reports false for nil.
func indirect(rv reflect.Value) (reflect.Value, bool) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return rv, false
		}
		rv = rv.Elem()
	}
	return rv, rv.IsValid()
}

// elements returns the elements of a slice or array value, or of a []any.
func elements(v any) ([]reflect.Value, bool) {
	rv, ok := indirect(reflect.ValueOf(v))
	if !ok {
		return nil, v == nil || isNilPointer(v)
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]reflect.Value, rv.Len())
	for i := range out {
		out[i] = rv.Index(i)
	}
	return out, true
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// interfaceOf returns the Go value held by rv for recursive encoding.
func interfaceOf(rv reflect.Value) (any, error) {
	if !rv.CanInterface() {
		return nil, fmt.Errorf("unexported field of %s", rv.Type())
	}
	return rv.Interface(), nil
}
