package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a job, worker or match does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an entity is not in a status that allows the operation
	ErrInvalidState = errors.New("invalid state")

	// ErrDeadlinePassed is returned when a worker responds after the match deadline
	ErrDeadlinePassed = errors.New("response deadline has passed")

	// ErrAlreadyResponded is returned when a match is no longer pending
	ErrAlreadyResponded = errors.New("offer already responded")
)

// ValidationError wraps malformed input such as an unparsable "HH:MM" string.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// NotFoundf wraps ErrNotFound with a reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidStatef wraps ErrInvalidState with a reason.
func InvalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
