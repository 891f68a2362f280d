package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel matched by NotFoundError.
var ErrNotFound = errors.New("key not found")

// NotFoundError is returned when a key is not present.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("key %q not found", e.Key)
}

// Is reports ErrNotFound equivalence.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound returns true if err is a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
