// Package errors provides the error taxonomy of the call layer.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strconv"

	"github.com/reglet-dev/guestcall/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// DetailedError is an interface for custom error types that can convert themselves
// to a structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
// This function recognizes custom error types and categorizes them appropriately.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// Kind classifies why a guest call failed.
type Kind string

const (
	KindMemoryNotFound          Kind = "memory_not_found"
	KindBufferFunctionMissing   Kind = "buffer_function_missing"
	KindShimFunctionMissing     Kind = "shim_function_missing"
	KindSignatureMismatch       Kind = "signature_mismatch"
	KindUnknownOperation        Kind = "unknown_operation"
	KindArgumentCountMismatch   Kind = "argument_count_mismatch"
	KindSerializationFailure    Kind = "serialization_failure"
	KindPayloadWriteOutOfBounds Kind = "payload_write_out_of_bounds"
	KindInputBufferOverflow     Kind = "input_buffer_overflow"
	KindCallTrap                Kind = "call_trap"
	KindLocatorDecodeFailure    Kind = "locator_decode_failure"
	KindPayloadReadOutOfBounds  Kind = "payload_read_out_of_bounds"
	KindResultDecodeFailure     Kind = "result_decode_failure"
)

// Category groups kinds by who is at fault.
type Category string

const (
	// CategoryLinkage means the guest does not provide what the call needs.
	CategoryLinkage Category = "linkage"
	// CategoryExecution means the guest faulted while running.
	CategoryExecution Category = "execution"
	// CategoryData means a value could not cross the boundary intact.
	CategoryData Category = "data"
)

// Category returns the category of k.
func (k Kind) Category() Category {
	switch k {
	case KindMemoryNotFound, KindBufferFunctionMissing, KindShimFunctionMissing,
		KindSignatureMismatch, KindUnknownOperation, KindArgumentCountMismatch:
		return CategoryLinkage
	case KindCallTrap:
		return CategoryExecution
	}
	return CategoryData
}

func (k Kind) missing() bool {
	switch k {
	case KindMemoryNotFound, KindBufferFunctionMissing, KindShimFunctionMissing, KindUnknownOperation:
		return true
	}
	return false
}

// Sentinels for errors.Is. A CallError matches the sentinel of its kind.
var (
	ErrMemoryNotFound          = sentinel(KindMemoryNotFound)
	ErrBufferFunctionMissing   = sentinel(KindBufferFunctionMissing)
	ErrShimFunctionMissing     = sentinel(KindShimFunctionMissing)
	ErrSignatureMismatch       = sentinel(KindSignatureMismatch)
	ErrUnknownOperation        = sentinel(KindUnknownOperation)
	ErrArgumentCountMismatch   = sentinel(KindArgumentCountMismatch)
	ErrSerializationFailure    = sentinel(KindSerializationFailure)
	ErrPayloadWriteOutOfBounds = sentinel(KindPayloadWriteOutOfBounds)
	ErrInputBufferOverflow     = sentinel(KindInputBufferOverflow)
	ErrCallTrap                = sentinel(KindCallTrap)
	ErrLocatorDecodeFailure    = sentinel(KindLocatorDecodeFailure)
	ErrPayloadReadOutOfBounds  = sentinel(KindPayloadReadOutOfBounds)
	ErrResultDecodeFailure     = sentinel(KindResultDecodeFailure)
)

func sentinel(k Kind) *CallError {
	return &CallError{Kind: k, ArgIndex: NoArg}
}

// NoArg is the ArgIndex of failures not tied to one argument.
const NoArg = -1

// CallError reports a failed guest call. Every failure aborts the call.
type CallError struct {
	// Err is the underlying cause, if any.
	Err error

	// Kind classifies the failure.
	Kind Kind

	// Operation is the operation being called.
	Operation string

	// Step is the call state the failure happened in.
	Step entities.CallState

	// Detail is a human-readable description of what went wrong.
	Detail string

	// ArgIndex is the zero-based argument for serialization and write
	// failures, NoArg otherwise.
	ArgIndex int
}

// NewCallError builds a CallError that is not tied to an argument.
func NewCallError(kind Kind, op string, step entities.CallState, detail string, err error) *CallError {
	return &CallError{Kind: kind, Operation: op, Step: step, Detail: detail, Err: err, ArgIndex: NoArg}
}

func (e *CallError) Error() string {
	msg := string(e.Kind)
	if e.Operation != "" {
		msg = fmt.Sprintf("call %s: %s", e.Operation, msg)
	}
	if e.ArgIndex >= 0 {
		msg += " (argument " + strconv.Itoa(e.ArgIndex) + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Is matches any CallError of the same kind, so the package sentinels work
// with errors.Is.
func (e *CallError) Is(target error) bool {
	t, ok := target.(*CallError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Category returns the category of the error's kind.
func (e *CallError) Category() Category {
	return e.Kind.Category()
}

// ToErrorDetail implements DetailedError.
func (e *CallError) ToErrorDetail() *entities.ErrorDetail {
	details := map[string]any{
		"category": string(e.Kind.Category()),
	}
	if e.Operation != "" {
		details["operation"] = e.Operation
	}
	if e.Step != "" {
		details["step"] = string(e.Step)
	}
	if e.ArgIndex >= 0 {
		details["argument"] = e.ArgIndex
	}
	detail := &entities.ErrorDetail{
		Message:    e.Error(),
		Type:       "guest_call",
		Code:       string(e.Kind),
		Details:    details,
		IsNotFound: e.Kind.missing(),
		IsTimeout:  stdErrors.Is(e.Err, context.DeadlineExceeded),
	}
	if e.Err != nil {
		detail.Wrapped = ToErrorDetail(e.Err)
	}
	return detail
}

// KindOf returns the kind of the first CallError in err's chain.
func KindOf(err error) (Kind, bool) {
	var ce *CallError
	if stdErrors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// DeclarationError reports an interface declaration that cannot be used.
type DeclarationError struct {
	Err       error
	Interface string
	Problems  []entities.ValidationError
}

func (e *DeclarationError) Error() string {
	prefix := "invalid interface declaration"
	if e.Interface != "" {
		prefix = fmt.Sprintf("invalid interface declaration %q", e.Interface)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	switch len(e.Problems) {
	case 0:
		return prefix
	case 1:
		return fmt.Sprintf("%s: %s: %s", prefix, e.Problems[0].Field, e.Problems[0].Message)
	}
	return fmt.Sprintf("%s: %s: %s (and %d more)", prefix, e.Problems[0].Field, e.Problems[0].Message, len(e.Problems)-1)
}

func (e *DeclarationError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *DeclarationError) ToErrorDetail() *entities.ErrorDetail {
	detail := &entities.ErrorDetail{Message: e.Error(), Type: "validation", Code: "declaration"}
	if len(e.Problems) > 0 {
		problems := make([]string, len(e.Problems))
		for i, p := range e.Problems {
			problems[i] = p.Field + ": " + p.Message
		}
		detail.Details = map[string]any{"problems": problems}
	}
	return detail
}

// SchemaError represents a schema generation error.
type SchemaError struct {
	Err  error
	Type string
}

func (e *SchemaError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("schema error for type %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("schema error: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *SchemaError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "validation", Code: "schema"}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}
