// Package errors defines the HTTP-facing error shape shared by bunsearch
// handlers, following the bunbase platform convention.
package errors

import (
	"fmt"
	"net/http"
)

// AppError represents a standardized application error
type AppError struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Err       error  `json:"-"` // Internal error for logging
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the internal error to errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// BadRequest creates a 400 error
func BadRequest(message string) *AppError {
	return New(http.StatusBadRequest, message, nil)
}

// NotFound creates a 404 error
func NotFound(message string) *AppError {
	return New(http.StatusNotFound, message, nil)
}

// Unavailable creates a 503 error marked retryable, used when a storage
// backend cannot be reached.
func Unavailable(message string, err error) *AppError {
	e := New(http.StatusServiceUnavailable, message, err)
	e.Retryable = true
	return e
}

// Internal creates a 500 error
func Internal(err error) *AppError {
	return New(http.StatusInternalServerError, "Internal Server Error", err)
}
