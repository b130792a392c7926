package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique field (product code, ticket code) is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidQuantity is returned for non-positive line or stock quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidInput covers other validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable marks a persistence failure. Callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// StoreFailure wraps a backend error so callers can match ErrStoreUnavailable
// while keeping the driver error in the chain.
func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// Invalid returns an ErrInvalidInput carrying a human readable reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
