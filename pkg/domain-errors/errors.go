// Package domainerrors defines the error vocabulary shared by services,
// stores, and transport. Services create these; the HTTP layer translates
// codes into status codes and exposes the reason to clients unchanged.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping and coarse-grained handling.
type Code string

const (
	CodeValidation         Code = "validation"
	CodeInvalidInput       Code = "invalid_input"
	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Reason is a stable, machine-readable identifier for a specific failure.
// Unlike the human-facing message it is part of the wire contract and must
// never be reworded once published.
type Reason string

// Error carries a code, an optional wire-stable reason, and a human message.
type Error struct {
	Code    Code
	Reason  Reason
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewWithReason creates a domain error carrying a wire-stable reason.
func NewWithReason(code Code, reason Reason, message string) *Error {
	return &Error{Code: code, Reason: reason, Message: message}
}

// Wrap annotates an underlying error with a domain code and message.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, err: err}
}

// WrapWithReason annotates an underlying error with a code and a reason.
func WrapWithReason(err error, code Code, reason Reason, message string) *Error {
	return &Error{Code: code, Reason: reason, Message: message, err: err}
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// HasReason reports whether err carries the given wire-stable reason.
func HasReason(err error, reason Reason) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason == reason
	}
	return false
}

// ReasonOf extracts the reason from err, or "" when err carries none.
func ReasonOf(err error) Reason {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}

// Is allows errors.Is matching on code equality between domain errors.
func (e *Error) Is(target error) bool {
	var de *Error
	if errors.As(target, &de) {
		return e.Code == de.Code && (de.Reason == "" || e.Reason == de.Reason)
	}
	return false
}
