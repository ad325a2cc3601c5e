// Package validate collects shape-validation errors for pipeline
// inputs (a Pattern; Config is checked by config.Validate) the same way the teacher's
// entities.MultiValidationError does for its domain entities: accumulate
// every violation found rather than stopping at the first one, so a
// caller sees the whole picture in one round trip.
package validate

import "fmt"

// FieldError is one violation: which field, and why.
type FieldError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Errors collects zero or more FieldErrors.
type Errors struct {
	items []FieldError
}

// New returns an empty Errors collector.
func New() *Errors {
	return &Errors{}
}

// Add appends one field violation.
func (e *Errors) Add(field, message string) {
	e.items = append(e.items, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any violation was recorded.
func (e *Errors) HasErrors() bool {
	return len(e.items) > 0
}

// Items returns the recorded violations in add order.
func (e *Errors) Items() []FieldError {
	return e.items
}

// Error implements the error interface so *Errors can be returned
// directly wherever a plain error is expected.
func (e *Errors) Error() string {
	if len(e.items) == 0 {
		return "no validation errors"
	}
	if len(e.items) == 1 {
		return e.items[0].Error()
	}
	return fmt.Sprintf("multiple validation errors: %d errors found", len(e.items))
}
