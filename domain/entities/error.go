package entities

import "fmt"

// ErrorDetail is the structured, serializable form of an error raised while
// declaring or calling a guest operation.
//
// Type is one of:
//   - "guest_call": a failed call; Code holds the failure kind and
//     Details["category"] is "linkage", "execution" or "data"
//   - "validation": a rejected interface declaration or schema
//   - "config": an invalid configuration value; Code names the field
//   - "panic": a recovered panic; Stack holds the trace
//   - "internal": anything else
type ErrorDetail struct {
	// Wrapped is the detail of the underlying cause, if it has one.
	Wrapped *ErrorDetail `json:"wrapped,omitempty"`

	Details map[string]any `json:"details,omitempty"`

	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`

	Stack []byte `json:"stack,omitempty"`

	// IsTimeout is set when the call was cut short by its deadline.
	IsTimeout bool `json:"is_timeout,omitempty"`

	// IsNotFound is set when a guest export or the requested operation is
	// missing.
	IsNotFound bool `json:"is_not_found,omitempty"`
}

// Error renders the detail as "type: message [code]: wrapped".
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Type != "" && e.Type != "internal" {
		msg = e.Type + ": " + msg
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}
