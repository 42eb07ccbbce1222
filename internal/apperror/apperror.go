// Package apperror defines the caller-facing error taxonomy of the social graph.
//
// Every expected failure (missing user, hidden post, self-follow, a request in
// the wrong state) is an *AppError wrapping one of the sentinel errors below.
// Callers match on the sentinel with errors.Is and read the message from the
// AppError. Anything that is NOT an *AppError is an unexpected failure and must
// be rendered opaquely at the boundary.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("Validation Error")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrInvalidState     = errors.New("invalid state")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %v", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %v", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// InvalidOperation reports a request that can never succeed, whatever the
// stored state is (following yourself, for example).
func InvalidOperation(message string) *AppError {
	return &AppError{
		Err:     ErrInvalidOperation,
		Message: message,
	}
}

// InvalidState reports an operation attempted on a record whose current state
// does not allow it. The actual state is always part of the message.
func InvalidState(resource, expected, actual string) *AppError {
	return &AppError{
		Err:     ErrInvalidState,
		Message: fmt.Sprintf("invalid %s state: expected %q, got %q", resource, expected, actual),
	}
}

// Is reports whether err is an *AppError, i.e. an expected caller-facing condition.
func Is(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}
