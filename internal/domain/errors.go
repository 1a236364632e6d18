package domain

import (
	"errors"
	"time"
)

// Common domain errors
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrInvalidInput = errors.New("invalid input")

	// Transfer errors
	ErrChecksumMismatch  = errors.New("checksum mismatch")
	ErrNotAFile          = errors.New("path is not a regular file")
	ErrInsufficientSpace = errors.New("insufficient disk space")

	// Journal errors
	ErrTransferNotFound = errors.New("transfer record not found")
)

// RetryableError represents an error that should trigger a retry.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

// Error returns the error message
func (e *RetryableError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "retryable error"
}

// Unwrap returns the underlying error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error, retryAfter time.Duration) *RetryableError {
	return &RetryableError{Err: err, RetryAfter: retryAfter}
}

// ChecksumError reports a digest mismatch between local and remote content
type ChecksumError struct {
	Expected string
	Actual   string
}

// Error returns the error message
func (e *ChecksumError) Error() string {
	return "checksum mismatch: expected " + e.Expected + ", got " + e.Actual
}

// Is reports whether target is ErrChecksumMismatch
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}
