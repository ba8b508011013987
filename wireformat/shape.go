package wireformat

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the encoding family of a Shape.
type Kind uint8

// Shape kinds.
const (
	KindUnit Kind = iota
	KindBool
	KindU8
	KindU16
	KindU32
	KindU64
	KindI8
	KindI16
	KindI32
	KindI64
	KindF32
	KindF64
	KindString
	KindBytes
	KindSeq
	KindOption
	KindTuple
	KindArray
	KindNamed
)

// builtinKinds maps the scalar shape names to their kinds.
var builtinKinds = map[string]Kind{
	"unit":   KindUnit,
	"bool":   KindBool,
	"u8":     KindU8,
	"u16":    KindU16,
	"u32":    KindU32,
	"u64":    KindU64,
	"i8":     KindI8,
	"i16":    KindI16,
	"i32":    KindI32,
	"i64":    KindI64,
	"f32":    KindF32,
	"f64":    KindF64,
	"string": KindString,
	"bytes":  KindBytes,
}

// constructors are the generic shape names that take arguments.
var constructors = map[string]Kind{
	"seq":    KindSeq,
	"option": KindOption,
	"tuple":  KindTuple,
	"array":  KindArray,
}

// IsBuiltin reports whether name is reserved by the shape grammar.
func IsBuiltin(name string) bool {
	_, scalar := builtinKinds[name]
	_, generic := constructors[name]
	return scalar || generic
}

// Shape is a parsed shape expression such as "u32", "seq<string>" or
// "array<u8;16>".
type Shape struct {
	Elem  *Shape   // seq, option and array element
	Name  string   // named shapes
	Elems []*Shape // tuple elements
	Len   int      // array length
	Kind  Kind
}

// String returns the canonical expression for s.
func (s *Shape) String() string {
	switch s.Kind {
	case KindSeq:
		return "seq<" + s.Elem.String() + ">"
	case KindOption:
		return "option<" + s.Elem.String() + ">"
	case KindArray:
		return "array<" + s.Elem.String() + ";" + strconv.Itoa(s.Len) + ">"
	case KindTuple:
		parts := make([]string, len(s.Elems))
		for i, e := range s.Elems {
			parts[i] = e.String()
		}
		return "tuple<" + strings.Join(parts, ",") + ">"
	case KindNamed:
		return s.Name
	}
	for name, k := range builtinKinds {
		if k == s.Kind {
			return name
		}
	}
	return fmt.Sprintf("kind(%d)", s.Kind)
}

// IsUnit reports whether s encodes to nothing. Operations whose result is unit
// have no locator step.
func (s *Shape) IsUnit() bool {
	return s.Kind == KindUnit
}

// Named returns every named shape referenced by s, in first-use order.
func (s *Shape) Named() []string {
	return s.collect(false)
}

// Inline returns the named shapes s stores by value, in first-use order.
// Names reached through seq, option or a zero-length array are left out.
func (s *Shape) Inline() []string {
	return s.collect(true)
}

func (s *Shape) collect(inline bool) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(*Shape)
	walk = func(sh *Shape) {
		switch sh.Kind {
		case KindNamed:
			if !seen[sh.Name] {
				seen[sh.Name] = true
				out = append(out, sh.Name)
			}
		case KindSeq, KindOption:
			if !inline {
				walk(sh.Elem)
			}
		case KindArray:
			if !inline || sh.Len > 0 {
				walk(sh.Elem)
			}
		case KindTuple:
			for _, e := range sh.Elems {
				walk(e)
			}
		}
	}
	walk(s)
	return out
}

// ParseShape parses a shape expression.
//
//	shape := ident | ident "<" shape ">" | "tuple<" shape {"," shape} ">" | "array<" shape ";" int ">"
func ParseShape(expr string) (*Shape, error) {
	p := &shapeParser{src: expr}
	s, err := p.shape()
	if err != nil {
		return nil, fmt.Errorf("invalid shape %q: %w", expr, err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("invalid shape %q: unexpected %q at offset %d", expr, p.src[p.pos:], p.pos)
	}
	return s, nil
}

// MustParseShape is like ParseShape but panics on error.
func MustParseShape(expr string) *Shape {
	s, err := ParseShape(expr)
	if err != nil {
		panic(err)
	}
	return s
}

type shapeParser struct {
	src string
	pos int
}

func (p *shapeParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *shapeParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *shapeParser) expect(c byte) error {
	if p.peek() != c {
		if p.pos >= len(p.src) {
			return fmt.Errorf("expected %q, got end of input", c)
		}
		return fmt.Errorf("expected %q at offset %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *shapeParser) ident() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isIdentByte(p.src[p.pos], p.pos == start) {
		p.pos++
	}
	if start == p.pos {
		if p.pos >= len(p.src) {
			return "", fmt.Errorf("expected shape name, got end of input")
		}
		return "", fmt.Errorf("expected shape name at offset %d", p.pos)
	}
	return p.src[start:p.pos], nil
}

func (p *shapeParser) number() (int, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected array length at offset %d", p.pos)
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		return 0, fmt.Errorf("array length: %w", err)
	}
	return n, nil
}

func (p *shapeParser) shape() (*Shape, error) {
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if k, ok := builtinKinds[name]; ok {
		return &Shape{Kind: k}, nil
	}
	k, generic := constructors[name]
	if !generic {
		return &Shape{Kind: KindNamed, Name: name}, nil
	}

	if err := p.expect('<'); err != nil {
		return nil, err
	}
	s := &Shape{Kind: k}
	switch k {
	case KindSeq, KindOption:
		if s.Elem, err = p.shape(); err != nil {
			return nil, err
		}
	case KindArray:
		if s.Elem, err = p.shape(); err != nil {
			return nil, err
		}
		if err := p.expect(';'); err != nil {
			return nil, err
		}
		if s.Len, err = p.number(); err != nil {
			return nil, err
		}
	case KindTuple:
		for {
			elem, err := p.shape()
			if err != nil {
				return nil, err
			}
			s.Elems = append(s.Elems, elem)
			if p.peek() != ',' {
				break
			}
			p.pos++
		}
	}
	if err := p.expect('>'); err != nil {
		return nil, err
	}
	return s, nil
}

// IsIdentifier reports whether name is a plain identifier: a letter or
// underscore followed by letters, digits or underscores.
func IsIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isIdentByte(name[i], i == 0) {
			return false
		}
	}
	return true
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}
