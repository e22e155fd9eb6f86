package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common error conditions
var (
	// ErrMissingQuery is returned when a request omits its query string
	ErrMissingQuery = errors.New("search query is required")

	// ErrInvalidIndex is returned when an unknown suggest index is requested
	ErrInvalidIndex = errors.New("invalid index")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)

// InvalidIndexError reports unknown suggest index names together with
// the set of valid ones, so the caller can self-correct.
type InvalidIndexError struct {
	Invalid []string
	Valid   []string
}

func (e *InvalidIndexError) Error() string {
	return fmt.Sprintf("invalid indexes: %s. Available indexes: %s",
		strings.Join(e.Invalid, ", "), strings.Join(e.Valid, ", "))
}

func (e *InvalidIndexError) Is(target error) bool {
	return target == ErrInvalidIndex
}

// NewInvalidIndexError creates a new InvalidIndexError
func NewInvalidIndexError(invalid, valid []string) *InvalidIndexError {
	return &InvalidIndexError{Invalid: invalid, Valid: valid}
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
