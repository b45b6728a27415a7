package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidCredentials indicates wrong email/password
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden indicates the caller may not access the resource
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyExists indicates a duplicate user
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrReferenceTaken indicates a generated application reference collided
	ErrReferenceTaken = errors.New("application reference already in use")
)

// FieldError describes one invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned before any side effect for malformed input
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a field error
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns e when it holds errors, nil otherwise
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
