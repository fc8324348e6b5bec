package apperrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping and retry policy.
type Code string

const (
	CodeUnauthorized           Code = "UNAUTHORIZED"
	CodeInvalidTransition      Code = "INVALID_TRANSITION"
	CodeMissingReason          Code = "MISSING_REASON"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
	CodeNotFound               Code = "NOT_FOUND"
	CodeInvalidInput           Code = "INVALID_INPUT"
	CodeStorage                Code = "STORAGE"
)

// Error is a coded error. All validation failures in the workflow core are
// returned as *Error so callers can branch on the code instead of the message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match two coded errors by code alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *Error {
	return Newf(CodeNotFound, "%s %s not found", resource, id)
}

// InvalidInput reports a bad request field.
func InvalidInput(field, message string) *Error {
	return Newf(CodeInvalidInput, "%s: %s", field, message)
}

// CodeOf extracts the code from an error, or STORAGE for anything uncoded,
// since uncoded errors out of this subsystem are persistence failures.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStorage
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
