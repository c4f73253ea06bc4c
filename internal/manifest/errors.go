package manifest

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is wrapped by KeyNotFoundError
	ErrKeyNotFound = errors.New("key not found")
	// ErrInvalidKey is returned for keys that are not clean relative paths
	ErrInvalidKey = errors.New("invalid manifest key")
)

// KeyNotFoundError is returned by Get, Delete and Locate for a missing key.
// Keys that cannot name an entry at all also carry the ErrInvalidKey cause.
type KeyNotFoundError struct {
	Key string
	Err error
}

func (e *KeyNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("manifest key not found: %v", e.Err)
	}
	return fmt.Sprintf("manifest key not found: %s", e.Key)
}

// Unwrap returns ErrKeyNotFound and the cause, if any, for errors.Is compatibility
func (e *KeyNotFoundError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrKeyNotFound, e.Err}
	}
	return []error{ErrKeyNotFound}
}
