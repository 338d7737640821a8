package models

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every component. Callers wrap these with
// fmt.Errorf("...: %w", ...) and classify with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrUnsupportedFormat    = errors.New("unsupported format")
	ErrUnsupportedModelType = errors.New("unsupported model type")
	ErrValidation           = errors.New("validation error")
	ErrInternal             = errors.New("internal failure")
)

// ValidationError describes a malformed request field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is makes every ValidationError match ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid is a shorthand for constructing a ValidationError
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
