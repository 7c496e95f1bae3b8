package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	// The two fatal kinds of a collection run.
	ErrCodeExtractionTimeout = "EXTRACTION_TIMEOUT"
	ErrCodeNavigation        = "NAVIGATION_FAILED"

	ErrCodeCanceled         = "RUN_CANCELED"
	ErrCodeDeadlineExceeded = "RUN_DEADLINE_EXCEEDED"
	ErrCodeBrowserCrash     = "BROWSER_CRASH"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeRunInProgress    = "RUN_IN_PROGRESS"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type RunError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError creates a new RunError.
func NewRunError(code, message string, err error) *RunError {
	return &RunError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *RunError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// AsRunError returns err as a *RunError, wrapping unknown errors as internal.
func AsRunError(err error) *RunError {
	var re *RunError
	if errors.As(err, &re) {
		return re
	}
	return NewRunError(ErrCodeInternal, err.Error(), err)
}
