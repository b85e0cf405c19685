package core

import (
	"context"
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrNotFound            = errors.New("ragjobs: job not found")
	ErrRegistryClosed      = errors.New("ragjobs: registry closed")
	ErrNilPayload          = errors.New("ragjobs: payload is nil")
	ErrUnsupportedFileType = errors.New("ragjobs: unsupported file type")
	ErrFileTooLarge        = errors.New("ragjobs: file too large")
	ErrFilenameMissing     = errors.New("ragjobs: filename is required")
	ErrFilenameTooLong     = errors.New("ragjobs: filename too long")
	ErrNegativeFileSize    = errors.New("ragjobs: file size must be non-negative")
	ErrEmptyPrompt         = errors.New("ragjobs: prompt is empty")
	ErrPromptTooLong       = errors.New("ragjobs: prompt exceeds length limit")
)

// InvalidInputError indicates a payload or stage input that can never
// succeed. It is not retryable.
type InvalidInputError struct {
	Err error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %v", e.Err)
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}

// InvalidInput wraps an error to mark it as a non-retryable input fault.
func InvalidInput(err error) error {
	return &InvalidInputError{Err: err}
}

// TransientError indicates a stage failure caused by an external hiccup.
// Resubmitting, or an internal retry, may succeed.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps an error to mark it as retryable.
func Transient(err error) error {
	return &TransientError{Err: err}
}

// IsRetryable reports whether err represents a transient condition.
// Invalid input and cancellation are never retryable.
func IsRetryable(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsCancellation reports whether err stems from context cancellation.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
