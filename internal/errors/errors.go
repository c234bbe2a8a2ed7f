package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a consent engine error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400
	ErrUnknownLanguage ErrorCode = "UNKNOWN_LANGUAGE" // 404
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404
	ErrFileNotFound    ErrorCode = "FILE_NOT_FOUND"   // 404
	ErrDetectionFailed ErrorCode = "DETECTION_FAILED" // 502
	ErrMailFailed      ErrorCode = "MAIL_FAILED"      // 502
	ErrInternal        ErrorCode = "INTERNAL"         // 500
)

// ConsentError represents a structured error with code, status, and details.
type ConsentError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *ConsentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ConsentError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ConsentError {
	return &ConsentError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnknownLanguage creates a 404 error for a language that is not configured.
func NewUnknownLanguage(lang string) *ConsentError {
	return &ConsentError{
		Code:    ErrUnknownLanguage,
		Status:  404,
		Message: fmt.Sprintf("language not configured: %s", lang),
		Details: map[string]any{"language": lang},
	}
}

// NewNotFound creates a 404 error for a missing settings record.
func NewNotFound(key string) *ConsentError {
	return &ConsentError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("setting not found: %s", key),
		Details: map[string]any{"key": key},
	}
}

// NewFileNotFound creates a 404 error for a missing backup file.
func NewFileNotFound(path string) *ConsentError {
	return &ConsentError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewDetectionFailed wraps a Detection Provider failure.
func NewDetectionFailed(err error) *ConsentError {
	return &ConsentError{
		Code:    ErrDetectionFailed,
		Status:  502,
		Message: fmt.Sprintf("service detection failed: %v", err),
		cause:   err,
	}
}

// NewMailFailed wraps a Mail Sink failure.
func NewMailFailed(recipients []string, err error) *ConsentError {
	return &ConsentError{
		Code:    ErrMailFailed,
		Status:  502,
		Message: fmt.Sprintf("alert delivery failed: %v", err),
		Details: map[string]any{"recipients": recipients},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The original error is kept in Details for logging; the message stays generic.
func NewInternal(err error) *ConsentError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &ConsentError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		cause:   err,
	}
}

// Is checks if an error (or anything it wraps) is a ConsentError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *ConsentError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}
