package ports

import (
	"context"
	"slices"
	"strings"
)

// ValueType is a WebAssembly core value type, valued as in the binary format.
type ValueType byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	}
	return "unknown"
}

// Signature is the parameter and result types of a guest function.
type Signature struct {
	Params  []ValueType
	Results []ValueType
}

// String renders the signature like "(i32, i32) -> (i32)".
func (s Signature) String() string {
	return "(" + joinTypes(s.Params) + ") -> (" + joinTypes(s.Results) + ")"
}

// Matches reports whether s has exactly the given parameter and result types.
func (s Signature) Matches(params, results []ValueType) bool {
	return slices.Equal(s.Params, params) && slices.Equal(s.Results, results)
}

func joinTypes(types []ValueType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
