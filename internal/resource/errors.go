package resource

import (
	"errors"
	"fmt"
)

// ErrUnrooted is the sentinel wrapped by UnrootedResourceError
var ErrUnrooted = errors.New("unrooted resource")

// UnrootedResourceError is returned when a local path is requested for a
// resource that cannot be localized
type UnrootedResourceError struct {
	URI string
}

func (e *UnrootedResourceError) Error() string {
	return fmt.Sprintf("cannot resolve local path: %s", e.URI)
}

// Unwrap returns ErrUnrooted for errors.Is compatibility
func (e *UnrootedResourceError) Unwrap() error {
	return ErrUnrooted
}
