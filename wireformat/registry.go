package wireformat

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Registry resolves shape expressions to codecs. Named shapes are registered
// explicitly; composite shapes are built on demand and cached by their
// canonical expression. A Registry is safe for concurrent use.
type Registry struct {
	named map[string]Codec
	cache map[string]Codec
	mu    sync.RWMutex
}

// NewRegistry returns a Registry that knows only the builtin shapes.
func NewRegistry() *Registry {
	return &Registry{
		named: make(map[string]Codec),
		cache: make(map[string]Codec),
	}
}

// Register binds a named shape to c.
func (r *Registry) Register(name string, c Codec) error {
	if err := checkShapeName(name); err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("shape %q: nil codec", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.add(name, c)
}

func checkShapeName(name string) error {
	if !IsIdentifier(name) {
		return fmt.Errorf("shape name %q is not an identifier", name)
	}
	if IsBuiltin(name) {
		return fmt.Errorf("shape name %q is reserved", name)
	}
	return nil
}

// add binds name to c. The caller holds r.mu.
func (r *Registry) add(name string, c Codec) error {
	if _, exists := r.named[name]; exists {
		return fmt.Errorf("shape %q already registered", name)
	}
	r.named[name] = c
	return nil
}

// RegisterRecord registers a record whose fields are encoded in the given
// order. Field shapes are resolved when the record is first used. A record
// that would close a by-value cycle through the records registered so far is
// rejected with ErrRecursiveShape.
func (r *Registry) RegisterRecord(name string, fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if !IsIdentifier(f.Name) {
			return fmt.Errorf("record %s: field name %q is not an identifier", name, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("record %s: duplicate field %q", name, f.Name)
		}
		seen[f.Name] = true
		if _, err := ParseShape(f.Shape); err != nil {
			return fmt.Errorf("record %s field %s: %w", name, f.Name, err)
		}
	}

	if err := checkShapeName(name); err != nil {
		return err
	}

	rc := &recordCodec{reg: r, name: name, fields: append([]Field(nil), fields...)}
	r.mu.Lock()
	defer r.mu.Unlock()
	lookup := func(n string) ([]string, bool) {
		if n == name {
			return rc.fieldShapes(), true
		}
		other, ok := r.named[n].(*recordCodec)
		if !ok {
			return nil, false
		}
		return other.fieldShapes(), true
	}
	if cycle := InlineCycle(name, lookup); cycle != nil {
		return fmt.Errorf("%w: %s", ErrRecursiveShape, strings.Join(cycle, " -> "))
	}
	return r.add(name, rc)
}

// RegisterEnum registers a unit-only enum encoded as its variant index.
func (r *Registry) RegisterEnum(name string, variants []string) error {
	if len(variants) == 0 {
		return fmt.Errorf("enum %s: no variants", name)
	}
	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		if !IsIdentifier(v) {
			return fmt.Errorf("enum %s: variant %q is not an identifier", name, v)
		}
		if seen[v] {
			return fmt.Errorf("enum %s: duplicate variant %q", name, v)
		}
		seen[v] = true
	}
	return r.Register(name, newEnumCodec(name, append([]string(nil), variants...)))
}

// Has reports whether a named shape is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.named[name]
	return ok
}

// Names returns the registered shape names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.named))
	for n := range r.named {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup parses expr and resolves its codec.
func (r *Registry) Lookup(expr string) (Codec, error) {
	s, err := ParseShape(expr)
	if err != nil {
		return nil, err
	}
	return r.Resolve(s)
}

// Resolve returns the codec for a parsed shape.
func (r *Registry) Resolve(s *Shape) (Codec, error) {
	if c, ok := scalarCodecs[s.Kind]; ok {
		return c, nil
	}
	if s.Kind == KindNamed {
		r.mu.RLock()
		c, ok := r.named[s.Name]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownShape, s.Name)
		}
		return c, nil
	}

	key := s.String()
	r.mu.RLock()
	c, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	c, err := r.build(s)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	if cached, ok := r.cache[key]; ok {
		c = cached
	} else {
		r.cache[key] = c
	}
	r.mu.Unlock()
	return c, nil
}

func (r *Registry) build(s *Shape) (Codec, error) {
	switch s.Kind {
	case KindSeq, KindOption, KindArray:
		elem, err := r.Resolve(s.Elem)
		if err != nil {
			return nil, err
		}
		switch s.Kind {
		case KindSeq:
			return &seqCodec{elem: elem}, nil
		case KindOption:
			return &optionCodec{elem: elem}, nil
		}
		return &arrayCodec{elem: elem, n: s.Len}, nil
	case KindTuple:
		elems := make([]Codec, len(s.Elems))
		for i, e := range s.Elems {
			c, err := r.Resolve(e)
			if err != nil {
				return nil, err
			}
			elems[i] = c
		}
		return &tupleCodec{elems: elems}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownShape, s)
}

// Encode serializes v as the shape expr.
func (r *Registry) Encode(expr string, v any) ([]byte, error) {
	c, err := r.Lookup(expr)
	if err != nil {
		return nil, err
	}
	return Marshal(c, v)
}

// Decode deserializes data as the shape expr. The whole input must be
// consumed.
func (r *Registry) Decode(expr string, data []byte) (any, error) {
	c, err := r.Lookup(expr)
	if err != nil {
		return nil, err
	}
	return Unmarshal(c, data)
}

// DecodeInto deserializes data as the shape expr and stores the result in the
// value pointed to by out.
func (r *Registry) DecodeInto(expr string, data []byte, out any) error {
	c, err := r.Lookup(expr)
	if err != nil {
		return err
	}
	return UnmarshalInto(c, data, out)
}

// Marshal encodes v with c.
func Marshal(c Codec, v any) ([]byte, error) {
	e := NewEncoder()
	if err := c.Encode(e, v); err != nil {
		var ee *EncodeError
		if errors.As(err, &ee) {
			ee.Shape = c.Shape()
			return nil, ee
		}
		return nil, &EncodeError{Shape: c.Shape(), Err: err}
	}
	return e.Bytes(), nil
}

// Unmarshal decodes exactly one value of c's shape from data.
func Unmarshal(c Codec, data []byte) (any, error) {
	d := NewDecoder(data)
	v, err := c.Decode(d)
	if err == nil {
		err = d.Finish()
	}
	if err != nil {
		return nil, &DecodeError{Shape: c.Shape(), Offset: d.Offset(), Err: err}
	}
	return v, nil
}

// UnmarshalInto decodes data with c and assigns the result to *out.
func UnmarshalInto(c Codec, data []byte, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", out)
	}
	v, err := Unmarshal(c, data)
	if err != nil {
		return err
	}
	if err := assign(rv.Elem(), v); err != nil {
		return &DecodeError{Shape: c.Shape(), Offset: len(data), Err: err}
	}
	return nil
}
