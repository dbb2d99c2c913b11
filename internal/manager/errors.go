package manager

import (
	"errors"
	"fmt"
)

// ErrAccessDenied is returned when the caller lacks the role an operation
// requires, or attempts to mutate a public mirror copy directly.
var ErrAccessDenied = errors.New("access denied")

// ValidationError reports invalid input or a violated invariant. The HTTP
// layer surfaces it as 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError reports an already-exists or illegal-state conflict. The HTTP
// layer surfaces it as 409.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// NewConflictError formats a ConflictError.
func NewConflictError(format string, args ...any) *ConflictError {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}
