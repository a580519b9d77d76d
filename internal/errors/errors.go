// Package errors provides the application error type shared by the engine,
// the store adapters and the HTTP layer. Every error that reaches a client is
// an *AppError so internal details never leak into responses.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FieldError names one offending input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	StatusCode int          `json:"-"`
	Internal   error        `json:"-"`
	Fields     []FieldError `json:"fields,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so a wrapped
// copy still matches its sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Validation builds a VALIDATION_FAILED error listing every offending field
// in the order given.
func Validation(fields ...FieldError) *AppError {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	return &AppError{
		Code:       ErrValidation.Code,
		Message:    fmt.Sprintf("Validation failed: %s", strings.Join(names, ", ")),
		StatusCode: ErrValidation.StatusCode,
		Fields:     fields,
	}
}

// IsTransient reports whether err is a store failure worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrStoreConflict)
}

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Validation errors.
var (
	ErrValidation    = &AppError{Code: "VALIDATION_FAILED", Message: "Validation failed", StatusCode: http.StatusBadRequest}
	ErrUnknownRegion = &AppError{Code: "UNKNOWN_REGION", Message: "Region is not registered", StatusCode: http.StatusBadRequest}
)

// Project errors.
var (
	ErrProjectNotFound = &AppError{Code: "PROJECT_NOT_FOUND", Message: "Project not found", StatusCode: http.StatusNotFound}
	ErrCodeImmutable   = &AppError{Code: "CODE_IMMUTABLE", Message: "Project code cannot be changed", StatusCode: http.StatusBadRequest}
)

// Store errors.
var (
	ErrStoreUnavailable = &AppError{Code: "STORE_UNAVAILABLE", Message: "Record store is unavailable", StatusCode: http.StatusServiceUnavailable}
	ErrStoreConflict    = &AppError{Code: "STORE_CONFLICT", Message: "Concurrent update conflict", StatusCode: http.StatusConflict}
	ErrCodeTaken        = &AppError{Code: "CODE_TAKEN", Message: "Project code is already in use", StatusCode: http.StatusConflict}
)

// Notification errors.
var (
	ErrSinkDelivery = &AppError{Code: "SINK_DELIVERY_FAILED", Message: "Notification delivery failed", StatusCode: http.StatusBadGateway}
	ErrNoSink       = &AppError{Code: "NO_SINK", Message: "No sink is configured for this channel", StatusCode: http.StatusBadRequest}
	ErrRunCancelled = &AppError{Code: "RUN_CANCELLED", Message: "Notification run was cancelled before dispatch", StatusCode: http.StatusConflict}
	ErrRunInFlight  = &AppError{Code: "RUN_IN_FLIGHT", Message: "Another notification run holds this slot", StatusCode: http.StatusConflict}
)

// Pipeline errors.
var (
	ErrPipelineNotConfigured = &AppError{Code: "PIPELINE_NOT_CONFIGURED", Message: "Pipeline endpoints are not configured", StatusCode: http.StatusServiceUnavailable}
	ErrInvalidAPIKey         = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
)
