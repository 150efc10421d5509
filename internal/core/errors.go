package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySelection is returned when a link request carries no incomes.
	ErrEmptySelection = errors.New("no transactions selected")

	// ErrNotFound is deliberately generic: it never says whether the record
	// exists for another user.
	ErrNotFound = errors.New("not found")

	// ErrStorageFailure matches every *StorageError through errors.Is.
	ErrStorageFailure = errors.New("storage failure")
)

// ValidationError reports a rejected field at the data-entry boundary.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StorageError wraps a failed store round-trip.
type StorageError struct {
	Op  string
	Err error
}

// Storage wraps err as a StorageError unless it is nil or already a domain
// error that callers need to see unchanged.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrEmptySelection) || IsValidation(err) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
