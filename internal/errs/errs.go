// Package errs implements the error taxonomy every Mira subsystem
// constructs and propagates, matching the wrap-with-%w idiom used
// throughout codenerd's store and session packages but giving the
// resulting errors a stable, inspectable Kind.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories from the error handling design.
type Kind string

const (
	BadRequest    Kind = "bad_request"
	NotFound      Kind = "not_found"
	Unauthorized  Kind = "unauthorized"
	ProviderError Kind = "provider_error"
	RateLimited   Kind = "rate_limited"
	Timeout       Kind = "timeout"
	Cancelled     Kind = "cancelled"
	Conflict      Kind = "conflict"
	Internal      Kind = "internal"
)

// Error wraps a Kind, a human message, and an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func BadRequestf(format string, args ...interface{}) *Error {
	return New(BadRequest, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func Unauthorizedf(format string, args ...interface{}) *Error {
	return New(Unauthorized, fmt.Sprintf(format, args...))
}

func Internalf(format string, args ...interface{}) *Error {
	return New(Internal, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...interface{}) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

// KindOf extracts the Kind from err, defaulting to Internal for errors not
// constructed through this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err (or something it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
