package wireformat

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnexpectedEOF is returned when the input ends inside a value.
	ErrUnexpectedEOF = errors.New("unexpected end of data")

	// ErrTrailingBytes is returned when a value is decoded but input remains.
	ErrTrailingBytes = errors.New("trailing bytes after value")

	// ErrTooDeep is returned when records nest deeper than MaxDepth.
	ErrTooDeep = errors.New("value nested too deeply")

	// ErrRecursiveShape is returned for a record that contains itself by
	// value.
	ErrRecursiveShape = errors.New("record contains itself by value")

	// ErrUnknownShape is returned when a named shape has no registered codec.
	ErrUnknownShape = errors.New("unknown shape")
)

// EncodeError reports a value that cannot be encoded as the given shape.
type EncodeError struct {
	Err   error
	Shape string
	Path  string
}

func (e *EncodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("encode %s at %s: %v", e.Shape, e.Path, e.Err)
	}
	return fmt.Sprintf("encode %s: %v", e.Shape, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// DecodeError reports bytes that do not decode as the given shape.
type DecodeError struct {
	Err    error
	Shape  string
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at offset %d: %v", e.Shape, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// withPath prefixes the element path of a nested encode failure, wrapping
// plain errors in an EncodeError on the way up.
func withPath(err error, elem string) error {
	var ee *EncodeError
	if !errors.As(err, &ee) {
		return &EncodeError{Err: err, Path: elem}
	}
	if ee.Path == "" {
		ee.Path = elem
	} else if strings.HasPrefix(ee.Path, "[") {
		ee.Path = elem + ee.Path
	} else {
		ee.Path = elem + "." + ee.Path
	}
	return ee
}
