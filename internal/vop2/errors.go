package vop2

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of configuration failure.
type ErrorCode string

// Error codes returned by the pipeline.
const (
	ErrOutOfRange       ErrorCode = "OUT_OF_RANGE"
	ErrUnsupportedMode  ErrorCode = "UNSUPPORTED_MODE"
	ErrValueTooWide     ErrorCode = "VALUE_TOO_WIDE"
	ErrHardwareNotReady ErrorCode = "HARDWARE_NOT_READY"
	ErrInvalidGeometry  ErrorCode = "INVALID_GEOMETRY"
	ErrCommitTimeout    ErrorCode = "COMMIT_TIMEOUT"
)

// Error is returned by every operation in this package. None of them are
// fatal: the caller decides whether to retry with corrected parameters.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	Cause   error          `json:"-"`
}

func newError(code ErrorCode, message string, context map[string]any) *Error {
	return &Error{Code: code, Message: message, Context: context}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HasCode checks if the error matches a specific code.
func (e *Error) HasCode(code ErrorCode) bool {
	return e.Code == code
}

// IsCode reports whether err, or anything it wraps, is an *Error with code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.HasCode(code)
	}
	return false
}
