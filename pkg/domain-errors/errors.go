// Package domainerrors defines the coded error taxonomy shared by all modules.
//
// Services translate infrastructure sentinels (pkg/platform/sentinel) and
// model invariant violations into coded errors; handlers translate codes into
// HTTP status and the wire error envelope. The Code string is the wire value.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the class of a domain error.
type Code string

const (
	// CodeNotFound: the referenced record does not exist.
	CodeNotFound Code = "not_found"

	// CodeValidation: request payload failed domain validation.
	CodeValidation Code = "validation_error"

	// CodeInvalidInput: a value failed parsing at a trust boundary (IDs, enums).
	CodeInvalidInput Code = "invalid_input"

	// CodeBadRequest: the request itself is malformed (bad JSON, unknown fields).
	CodeBadRequest Code = "bad_request"

	// CodeInvariantViolation: a model constructor or mutator rejected a state
	// that would break a domain invariant.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInvalidTransition: the requested status change is not an edge in the
	// record's transition graph.
	CodeInvalidTransition Code = "invalid_transition"

	// CodeConflict: the write collided with existing state (duplicate id,
	// unique constraint).
	CodeConflict Code = "conflict"

	// CodeConcurrencyConflict: optimistic concurrency retries were exhausted;
	// the caller should re-read and retry.
	CodeConcurrencyConflict Code = "concurrency_conflict"

	// CodeDownstream: a dependent subsystem failed while the primary write
	// succeeded or was rolled back.
	CodeDownstream Code = "downstream_failure"

	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"
)

// Error carries a Code plus a human-readable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match coded errors structurally, so callers can compare
// against a rebuilt template instead of sharing the exact instance. Causes
// are ignored; code and message identify the domain error.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code && e.Message == other.Message
}

// New constructs a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/errors.As chains. A nil err yields a plain coded error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for older call sites.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that never passed through the domain layer.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the domain message from err; empty for uncoded errors so
// internal details never leak to clients.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// httpStatus maps each code to the HTTP status handlers respond with.
var httpStatus = map[Code]int{
	CodeNotFound:            http.StatusNotFound,
	CodeValidation:          http.StatusBadRequest,
	CodeInvalidInput:        http.StatusBadRequest,
	CodeBadRequest:          http.StatusBadRequest,
	CodeInvariantViolation:  http.StatusBadRequest,
	CodeInvalidTransition:   http.StatusBadRequest,
	CodeConflict:            http.StatusConflict,
	CodeConcurrencyConflict: http.StatusConflict,
	CodeDownstream:          http.StatusBadGateway,
	CodeUnauthorized:        http.StatusUnauthorized,
	CodeForbidden:           http.StatusForbidden,
	CodeTimeout:             http.StatusGatewayTimeout,
	CodeInternal:            http.StatusInternalServerError,
}

// HTTPStatus returns the response status for a code. Unknown codes map to 500.
func HTTPStatus(code Code) int {
	if status, ok := httpStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
