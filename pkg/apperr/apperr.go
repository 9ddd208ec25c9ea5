// Package apperr defines the failure taxonomy shared by services and HTTP handlers.
//
// Services return *Error values (or wrap them with %w); the HTTP layer maps the
// Kind to a status code and a uniform failure body. Anything that is not an
// *Error is reported as KindActionFailed.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure
type Kind string

const (
	KindParameterMissing Kind = "PARAMETER_MISSING"
	KindBadRequest       Kind = "BAD_REQUEST"
	KindUnauthorized     Kind = "UNAUTHORIZED"
	KindForbidden        Kind = "FORBIDDEN"
	KindNotFound         Kind = "NOT_FOUND"
	KindConflict         Kind = "CONFLICT"
	KindRateLimited      Kind = "RATE_LIMITED"
	KindActionFailed     Kind = "ACTION_FAILED"
)

// Error is a classified failure with a client-safe message
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. The message is what clients see.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// MissingParameter reports a required field that was not supplied
func MissingParameter(name string) *Error {
	return Newf(KindParameterMissing, "%s is required", name)
}

func BadRequest(message string) *Error   { return New(KindBadRequest, message) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error    { return New(KindForbidden, message) }
func NotFound(message string) *Error     { return New(KindNotFound, message) }
func Conflict(message string) *Error     { return New(KindConflict, message) }

// Internal wraps an unexpected failure. The client only sees "action failed".
func Internal(err error) *Error {
	return Wrap(KindActionFailed, "action failed", err)
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindActionFailed
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the client-safe message for err
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "action failed"
}
