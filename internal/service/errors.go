package service

import (
	"errors"
	"fmt"

	"annotation-service/internal/keyspace"
	"annotation-service/internal/storage"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrStaleAssignment means the job is no longer held by the caller; the client should refetch.
	ErrStaleAssignment = errors.New("job no longer assigned")
	ErrValidation      = errors.New("validation failed")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadyExists   = errors.New("already exists")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// validateIDs checks identifiers before they are turned into keys.
func validateIDs(ids ...string) error {
	for _, id := range ids {
		if err := keyspace.Validate(id); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return nil
}

// translate maps a storage miss onto the service taxonomy.
func translate(err error, what string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return notFoundf("%s", what)
	}
	return err
}
