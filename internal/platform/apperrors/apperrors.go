// Package apperrors carries the coded error type shared by repositories,
// services and handlers. Codes classify failures so the HTTP layer can map
// them to response statuses without inspecting error strings.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error.
type Code string

const (
	ErrCodeNotFound      Code = "NOT_FOUND"
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeConflict      Code = "CONFLICT"
	ErrCodeNoRoutingRule Code = "NO_ROUTING_RULE"
	ErrCodeUnauthorized  Code = "UNAUTHORIZED"
	ErrCodeUnavailable   Code = "UNAVAILABLE"
	ErrCodeInternal      Code = "INTERNAL"
)

// Error is a coded application error, optionally wrapping a cause.
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

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// NotFound reports that a referenced resource does not exist.
func NotFound(resource, id string) error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// InvalidInput reports a validation failure on a named field.
func InvalidInput(field, message string) error {
	return &Error{Code: ErrCodeInvalidInput, Message: fmt.Sprintf("%s: %s", field, message)}
}

// Conflict reports a uniqueness or state conflict.
func Conflict(message string) error {
	return &Error{Code: ErrCodeConflict, Message: message}
}

// NoRoutingRule reports that rule resolution found nothing and the caller
// required a match.
func NoRoutingRule(category, district string) error {
	return &Error{
		Code:    ErrCodeNoRoutingRule,
		Message: fmt.Sprintf("no routing rule matches category %q district %q", category, district),
	}
}

// CodeOf extracts the code from an error chain, defaulting to INTERNAL.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}

// HTTPStatus maps an error to the response status the handlers use.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeNoRoutingRule:
		return http.StatusUnprocessableEntity
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
