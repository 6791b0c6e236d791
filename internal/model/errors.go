package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a stock id is unknown.
var ErrNotFound = errors.New("stock not found")

// ErrStoreUnavailable wraps persistence failures. During a scheduled tick
// it is logged and the stock is skipped for that cycle; it never crashes
// the scheduler.
var ErrStoreUnavailable = errors.New("store unavailable")

// FieldError names one rejected input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports one or more out-of-range or malformed inputs.
// A command that returns a ValidationError has not mutated any state.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Reason
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a rejected field.
func (e *ValidationError) Add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// Addf records a rejected field with a formatted reason.
func (e *ValidationError) Addf(field, format string, args ...any) {
	e.Add(field, fmt.Sprintf(format, args...))
}

// Err returns e if any field was rejected, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
