package wireformat

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Field is one declared record field.
type Field struct {
	Name  string `json:"name" yaml:"name"`
	Shape string `json:"shape" yaml:"shape"`
}

// recordCodec encodes the declared fields back to back. Field codecs are
// resolved on first use so records may refer to shapes registered later,
// including themselves through seq or option.
type recordCodec struct {
	reg    *Registry
	name   string
	fields []Field

	once   sync.Once
	codecs []Codec
	err    error
}

func (c *recordCodec) Shape() string { return c.name }

func (c *recordCodec) fieldShapes() []string {
	out := make([]string, len(c.fields))
	for i, f := range c.fields {
		out[i] = f.Shape
	}
	return out
}

func (c *recordCodec) resolve() ([]Codec, error) {
	c.once.Do(func() {
		codecs := make([]Codec, len(c.fields))
		for i, f := range c.fields {
			fc, err := c.reg.Lookup(f.Shape)
			if err != nil {
				c.err = fmt.Errorf("record %s field %s: %w", c.name, f.Name, err)
				return
			}
			codecs[i] = fc
		}
		c.codecs = codecs
	})
	return c.codecs, c.err
}

func (c *recordCodec) MinSize() int {
	codecs, err := c.resolve()
	if err != nil {
		return 0
	}
	n := 0
	for _, fc := range codecs {
		n += fc.MinSize()
	}
	return n
}

func (c *recordCodec) Encode(e *Encoder, v any) error {
	codecs, err := c.resolve()
	if err != nil {
		return err
	}
	rv, ok := indirect(reflect.ValueOf(v))
	if !ok {
		return fmt.Errorf("cannot use %T as record %s", v, c.name)
	}

	switch rv.Kind() {
	case reflect.Struct:
		for i, f := range c.fields {
			fv, found := structField(rv, f.Name)
			if !found {
				return withPath(fmt.Errorf("%s has no field for %q", rv.Type(), f.Name), f.Name)
			}
			x, err := interfaceOf(fv)
			if err != nil {
				return withPath(err, f.Name)
			}
			if err := codecs[i].Encode(e, x); err != nil {
				return withPath(err, f.Name)
			}
		}
		return nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("record %s needs string map keys, got %s", c.name, rv.Type())
		}
		if rv.Len() > len(c.fields) {
			return c.unknownKey(rv)
		}
		for i, f := range c.fields {
			fv := rv.MapIndex(reflect.ValueOf(f.Name).Convert(rv.Type().Key()))
			if !fv.IsValid() {
				return withPath(fmt.Errorf("missing field"), f.Name)
			}
			if err := codecs[i].Encode(e, fv.Interface()); err != nil {
				return withPath(err, f.Name)
			}
		}
		return nil
	}
	return fmt.Errorf("cannot use %T as record %s", v, c.name)
}

func (c *recordCodec) unknownKey(rv reflect.Value) error {
	known := make(map[string]bool, len(c.fields))
	for _, f := range c.fields {
		known[f.Name] = true
	}
	iter := rv.MapRange()
	for iter.Next() {
		if k := iter.Key().String(); !known[k] {
			return fmt.Errorf("record %s has no field %q", c.name, k)
		}
	}
	return fmt.Errorf("record %s has %d fields, got %d", c.name, len(c.fields), rv.Len())
}

func (c *recordCodec) Decode(d *Decoder) (any, error) {
	codecs, err := c.resolve()
	if err != nil {
		return nil, err
	}
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	out := make(map[string]any, len(c.fields))
	for i, f := range c.fields {
		v, err := codecs[i].Decode(d)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

// InlineCycle returns the chain start -> ... -> start when the record start
// contains itself by value, or nil when it does not. fields reports the field
// shape expressions of a record and false for any other name. References
// under seq or option do not count, nor do zero-length arrays.
func InlineCycle(start string, fields func(name string) ([]string, bool)) []string {
	visited := map[string]bool{}
	var path []string
	var walk func(name string) bool
	walk = func(name string) bool {
		exprs, ok := fields(name)
		if !ok {
			return false
		}
		path = append(path, name)
		for _, expr := range exprs {
			s, err := ParseShape(expr)
			if err != nil {
				continue
			}
			for _, next := range s.Inline() {
				if next == start {
					path = append(path, start)
					return true
				}
				if visited[next] {
					continue
				}
				visited[next] = true
				if walk(next) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		return false
	}
	if walk(start) {
		return path
	}
	return nil
}

// structField finds the exported field of rv that carries name, either through
// a `wire:"name"` tag or by a case-insensitive match that ignores underscores.
func structField(rv reflect.Value, name string) (reflect.Value, bool) {
	t := rv.Type()
	want := foldName(name)
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		if tag, ok := sf.Tag.Lookup("wire"); ok {
			if tag == name {
				return rv.Field(i), true
			}
			continue
		}
		if foldName(sf.Name) == want {
			return rv.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func foldName(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

// enumCodec encodes a unit-only enum as its u32 variant index.
type enumCodec struct {
	name     string
	variants []string
	index    map[string]uint32
}

func newEnumCodec(name string, variants []string) *enumCodec {
	idx := make(map[string]uint32, len(variants))
	for i, v := range variants {
		idx[v] = uint32(i)
	}
	return &enumCodec{name: name, variants: variants, index: idx}
}

func (c *enumCodec) Shape() string { return c.name }
func (c *enumCodec) MinSize() int  { return 4 }

func (c *enumCodec) Encode(e *Encoder, v any) error {
	v = deref(v)
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		i, ok := c.index[rv.String()]
		if !ok {
			return fmt.Errorf("enum %s has no variant %q", c.name, rv.String())
		}
		e.PutU32(i)
		return nil
	}
	i, err := toUint(v, 32)
	if err != nil {
		return fmt.Errorf("cannot use %T as enum %s", v, c.name)
	}
	if i >= uint64(len(c.variants)) {
		return fmt.Errorf("enum %s has no variant %d", c.name, i)
	}
	e.PutU32(uint32(i))
	return nil
}

func (c *enumCodec) Decode(d *Decoder) (any, error) {
	i, err := d.U32()
	if err != nil {
		return nil, err
	}
	if uint64(i) >= uint64(len(c.variants)) {
		return nil, fmt.Errorf("enum %s has no variant %d", c.name, i)
	}
	return c.variants[i], nil
}
