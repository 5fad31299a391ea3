// Package apierror defines the error taxonomy surfaced to API clients.
//
// Every error carries an HTTP status and a machine-readable code so the
// serving layer can map failures uniformly, and implements the graphql-go
// extended-error contract so codes also surface inside GraphQL responses.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error codes.
const (
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeUnsupportedType = "UNSUPPORTED_TYPE"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
)

// Error is a typed API error with an HTTP status and code.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Extensions implements gqlerrors.ExtendedError so the code and status are
// included in the GraphQL error response.
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code":   e.Code,
		"status": e.Status,
	}
}

// NewValidation reports malformed metadata or user input (HTTP 400).
func NewValidation(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeBadUserInput, Message: fmt.Sprintf(format, args...)}
}

// NewUnsupportedType reports a field type outside the allowed taxonomy. It
// indicates a validator/generator mismatch and is a programming invariant
// violation, not a user error.
func NewUnsupportedType(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeUnsupportedType, Message: fmt.Sprintf(format, args...)}
}

// NewUnauthorized reports a missing or invalid API key or scope (HTTP 401).
func NewUnauthorized(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// NewForbidden reports an authenticated but disallowed request (HTTP 403).
func NewForbidden(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

// NewNotFound reports an absent target record (HTTP 404).
func NewNotFound(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewInternal wraps an unexpected failure (HTTP 500).
func NewInternal(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

// CodeOf returns the machine-readable code for err, defaulting to
// INTERNAL_SERVER_ERROR.
func CodeOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return CodeInternal
}
