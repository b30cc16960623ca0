package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownEntity       = errors.New("unknown entity")
	ErrUnknownField        = errors.New("unknown field")
	ErrInvalidTraversal    = errors.New("invalid traversal")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrArityMismatch       = errors.New("arity mismatch")
	ErrInvalidValue        = errors.New("invalid value")
	ErrValidation          = errors.New("validation error")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrNotFound            = errors.New("not found")
	// ErrRetryable marks transient storage failures. The engine never retries
	// on its own; callers decide.
	ErrRetryable = errors.New("storage temporarily unavailable")
)

// PathError is a field path resolution failure. Message is safe to show to
// the requesting user.
type PathError struct {
	Kind    error
	Entity  string
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return e.Message
}

func (e *PathError) Unwrap() error {
	return e.Kind
}

// NewPathError builds a PathError of the given kind.
func NewPathError(kind error, entity, path, format string, args ...any) *PathError {
	return &PathError{
		Kind:    kind,
		Entity:  entity,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	}
}

// CriterionError attaches a compile failure to the criterion that caused it.
type CriterionError struct {
	Location string
	Field    string
	Operator string
	Err      error
}

func (e *CriterionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Location, e.Err)
}

func (e *CriterionError) Unwrap() error {
	return e.Err
}

// RetryableError wraps a transient storage failure.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() []error {
	return []error{ErrRetryable, e.Err}
}

// IsPathError reports whether err is any of the path resolution failures.
func IsPathError(err error) bool {
	return errors.Is(err, ErrUnknownEntity) || errors.Is(err, ErrUnknownField) || errors.Is(err, ErrInvalidTraversal)
}

// IsCompileError reports whether err came from criteria validation.
func IsCompileError(err error) bool {
	return errors.Is(err, ErrUnsupportedOperator) || errors.Is(err, ErrArityMismatch) ||
		errors.Is(err, ErrInvalidValue) || errors.Is(err, ErrValidation) || IsPathError(err)
}
