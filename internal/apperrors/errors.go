// Package apperrors defines the error taxonomy shared by the storage engine,
// the services and the HTTP handlers.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error
type Kind int

const (
	// KindStorage is a backing-store failure; details are never shown to clients
	KindStorage Kind = iota
	// KindValidation is malformed or missing input
	KindValidation
	// KindAuthentication is a missing or invalid session
	KindAuthentication
	// KindNotFound is an unknown id
	KindNotFound
	// KindConflict is a uniqueness violation
	KindConflict
)

// AppError represents an application error with a classification
type AppError struct {
	Kind    Kind
	Message string      // User-friendly message
	Err     error       // Underlying error
	Details interface{} // Field level details for validation errors
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error kind
func (e *AppError) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine readable error code used in API responses
func (e *AppError) Code() string {
	switch e.Kind {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindAuthentication:
		return "AUTH_FAILED"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	default:
		return "INTERNAL_ERROR"
	}
}

// Validation creates a validation error
func Validation(message string, details interface{}) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Details: details}
}

// Authentication creates an authentication error
func Authentication(message string) *AppError {
	return &AppError{Kind: KindAuthentication, Message: message}
}

// NotFound creates a not-found error
func NotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

// Conflict creates a conflict error
func Conflict(message string, err error) *AppError {
	return &AppError{Kind: KindConflict, Message: message, Err: err}
}

// Storage wraps a backing-store failure
func Storage(message string, err error) *AppError {
	return &AppError{Kind: KindStorage, Message: message, Err: err}
}

// As extracts an *AppError from err. Errors outside the taxonomy are
// reported as storage failures.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Storage("internal error", err)
}

// Is reports whether err is an AppError of the given kind
func Is(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
