// Package apperr defines the error kinds returned by the report workflow.
// Every failure is wrapped around one of the sentinels below so callers can
// branch with errors.Is or KindOf.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrPermissionDenied is returned when the actor lacks the capability for the action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidTransition is returned when the action is not legal from the report's status
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrValidation is returned for missing fields or an inconsistent location triple
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned when a referenced report, actor or location does not exist
	ErrNotFound = errors.New("not found")

	// ErrConcurrencyConflict is returned when the report changed between read and write
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// Kind identifies an error category for transport mapping
type Kind string

const (
	KindPermissionDenied    Kind = "permission_denied"
	KindInvalidTransition   Kind = "invalid_transition"
	KindValidation          Kind = "validation_error"
	KindNotFound            Kind = "not_found"
	KindConcurrencyConflict Kind = "concurrency_conflict"
	KindInternal            Kind = "internal"
)

// KindOf returns the kind of err, or KindInternal when err wraps none of the sentinels
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConcurrencyConflict):
		return KindConcurrencyConflict
	default:
		return KindInternal
	}
}

// ValidationError carries per-field validation failures
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError from field -> message pairs
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// Field builds a ValidationError for a single field
func Field(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: fmt.Sprintf(format, args...)}}
}

// Add records a failure for field and returns e for chaining
func (e *ValidationError) Add(field, format string, args ...interface{}) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = fmt.Sprintf(format, args...)
	return e
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is reports ValidationError as ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PermissionDenied wraps ErrPermissionDenied with a reason
func PermissionDenied(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the missing resource
func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflict wraps ErrConcurrencyConflict with context
func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConcurrencyConflict, fmt.Sprintf(format, args...))
}
