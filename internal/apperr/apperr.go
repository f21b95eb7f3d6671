// Package apperr defines the error taxonomy shared by the persistence layer and its consumers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized means the backing store has no usable credential yet.
	ErrNotInitialized = errors.New("backing store not initialized")
	// ErrNotFound means an id does not resolve to a row.
	ErrNotFound = errors.New("record not found")
	// ErrMalformedRecord means a stored cell cannot be decoded into its column type.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrUnauthorized means the backing API rejected the credential (401/403).
	ErrUnauthorized = errors.New("unauthorized by backing api")
	// ErrValidation means caller input is missing a field or breaks a constraint.
	ErrValidation = errors.New("validation failed")
	// ErrCredentialMissing is returned by credential stores for an absent key.
	ErrCredentialMissing = errors.New("credential not stored")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Fields returns every ValidationError in err, looking through wrapped and joined errors.
func Fields(err error) []*ValidationError {
	var out []*ValidationError
	var walk func(error)
	walk = func(e error) {
		switch x := e.(type) {
		case nil:
		case *ValidationError:
			out = append(out, x)
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(x.Unwrap())
		}
	}
	walk(err)
	return out
}

// RecordError locates a cell that failed to decode.
type RecordError struct {
	Sheet  string
	Row    int
	Column string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s row %d column %s: %v", e.Sheet, e.Row, e.Column, e.Err)
}

func (e *RecordError) Unwrap() []error { return []error{ErrMalformedRecord, e.Err} }

func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
