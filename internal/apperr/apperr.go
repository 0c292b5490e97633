// Package apperr defines the error taxonomy shared by the orchestrators, the
// invitation lifecycle and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine-readable error code.
type Code string

const (
	// InvalidArgument indicates missing or malformed required input.
	InvalidArgument Code = "INVALID_ARGUMENT"
	// NotFound indicates a missing mentor, mentee, mentorship or invitation.
	NotFound Code = "NOT_FOUND"
	// Conflict indicates the mentorship was already resolved at accept time.
	Conflict Code = "CONFLICT"
	// ModelUnavailable indicates the language model could not be reached. Absorbed by fallbacks.
	ModelUnavailable Code = "MODEL_UNAVAILABLE"
	// ParseFailure indicates unusable model output. Absorbed by fallbacks.
	ParseFailure Code = "PARSE_FAILURE"
	// Internal indicates an unexpected failure.
	Internal Code = "INTERNAL"
)

// Error carries a Code, a caller-facing message and an optional cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

// New creates an Error without a cause.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil && e.cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the code of the first *Error in err's chain, or Internal.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return Internal
}

// MessageOf returns the caller-facing message for err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}

// Classified reports whether err carries any Code.
func Classified(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr)
}

// HTTPStatus maps a code to the status the API responds with.
func HTTPStatus(code Code) int {
	switch code {
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case ModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
