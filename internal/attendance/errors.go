package attendance

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey is returned by Repository inserts that would violate a uniqueness constraint.
	ErrDuplicateKey = errors.New("duplicate key")

	ErrAlreadyRegistered  = errors.New("student already registered")
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrStudentNotFound    = errors.New("student not registered")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrAlreadyMarked      = errors.New("attendance already marked")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidInput       = errors.New("invalid input")
)

// storageErr tags a backend failure so callers can tell it apart from domain errors.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
