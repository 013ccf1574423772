package gamification

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by the store when a user has no progress record.
	ErrNotFound = errors.New("progress not found")
	// ErrVersionConflict is returned by Save when the record changed since it was loaded.
	ErrVersionConflict = errors.New("progress was modified concurrently")
	// ErrInsufficientFunds marks a rejected power-up purchase.
	ErrInsufficientFunds = errors.New("insufficient points")
)

// ValidationError reports malformed event input. Nothing is mutated when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
