package domain

import (
	"errors"
	"fmt"
)

// common domain errors that cross entity boundaries.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// ErrMalformedInput means a field was present but unusable.
	// absent fields are defaulted, malformed ones fail the evaluation.
	ErrMalformedInput = errors.New("malformed input")
)

// MalformedInputError names the field that failed validation.
type MalformedInputError struct {
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: %s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedInput.
func (e *MalformedInputError) Unwrap() error {
	return ErrMalformedInput
}

func malformed(field, reason string) error {
	return &MalformedInputError{Field: field, Reason: reason}
}
