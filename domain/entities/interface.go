package entities

import "strings"

// Interface is the declared surface of a guest module: the operations the
// guest exports shims for, and the named shapes their values use.
type Interface struct {
	// Shapes declares the named records and enums referenced by operations.
	Shapes map[string]ShapeDecl `json:"shapes,omitempty" yaml:"shapes,omitempty" validate:"dive"`

	// Name identifies the interface, usually after the guest crate or module.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Version is the interface version. It is informational.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Description is a human-readable summary.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Operations lists the callable guest operations.
	Operations []Operation `json:"operations" yaml:"operations" validate:"required,min=1,unique=Name,dive"`
}

// Operation returns the declared operation called name.
func (i *Interface) Operation(name string) (*Operation, bool) {
	for idx := range i.Operations {
		if i.Operations[idx].Name == name {
			return &i.Operations[idx], true
		}
	}
	return nil, false
}

// OperationNames returns the operation names in declaration order.
func (i *Interface) OperationNames() []string {
	names := make([]string, len(i.Operations))
	for idx, op := range i.Operations {
		names[idx] = op.Name
	}
	return names
}

// UnitShape is the shape of operations that return nothing.
const UnitShape = "unit"

// Operation is one guest export callable through the marshalling layer.
type Operation struct {
	// Name is the operation name. The guest exports its shim as __wasm_<Name>.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Description is a human-readable summary.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Result is the shape expression of the return value. Empty means unit.
	Result string `json:"result,omitempty" yaml:"result,omitempty"`

	// Params are the arguments, in the order the shim receives them.
	Params []Parameter `json:"params,omitempty" yaml:"params,omitempty" validate:"dive"`
}

// ResultShape returns the result shape, defaulting to unit.
func (o *Operation) ResultShape() string {
	if o.Result == "" {
		return UnitShape
	}
	return o.Result
}

// HasResult reports whether the operation returns a value.
func (o *Operation) HasResult() bool {
	return o.ResultShape() != UnitShape
}

// String renders the operation as a signature, e.g. "add(a: i32, b: i32) -> i32".
func (o *Operation) String() string {
	var b strings.Builder
	b.WriteString(o.Name)
	b.WriteByte('(')
	for i, p := range o.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Shape)
	}
	b.WriteByte(')')
	if o.HasResult() {
		b.WriteString(" -> ")
		b.WriteString(o.Result)
	}
	return b.String()
}

// Parameter is one declared argument.
type Parameter struct {
	// Name must be a plain identifier.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Shape is the shape expression of the argument value.
	Shape string `json:"shape" yaml:"shape" validate:"required"`

	// Pattern holds a destructuring pattern when the source declared one
	// instead of a name. Declarations carrying a pattern are rejected.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// Receiver marks a method receiver. Declarations carrying one are
	// rejected.
	Receiver bool `json:"receiver,omitempty" yaml:"receiver,omitempty"`
}

// ShapeDecl declares a named shape as either a record or an enum.
type ShapeDecl struct {
	// Description is a human-readable summary.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Fields makes the shape a record encoded as its fields in order.
	Fields []FieldDecl `json:"fields,omitempty" yaml:"fields,omitempty" validate:"dive"`

	// Variants makes the shape a unit-only enum encoded as a u32 index.
	Variants []string `json:"variants,omitempty" yaml:"variants,omitempty"`
}

// IsRecord reports whether the declaration is a record.
func (s ShapeDecl) IsRecord() bool {
	return len(s.Fields) > 0
}

// IsEnum reports whether the declaration is an enum.
func (s ShapeDecl) IsEnum() bool {
	return len(s.Variants) > 0
}

// FieldDecl is one record field.
type FieldDecl struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Shape string `json:"shape" yaml:"shape" validate:"required"`
}
