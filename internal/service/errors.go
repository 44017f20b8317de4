package service

import (
	"errors"
	"fmt"

	"github.com/m2b-ebook/api/internal/database"
)

// Errors returned by the order services. Store errors database.ErrNotFound
// and database.ErrDuplicateKey pass through unchanged.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// storeError keeps the store sentinels and marks anything else as an
// upstream failure.
func storeError(op string, err error) error {
	if errors.Is(err, database.ErrNotFound) || errors.Is(err, database.ErrDuplicateKey) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, op, err)
}
