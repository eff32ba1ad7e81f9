package shadow

import (
	"errors"
	"fmt"
)

// errDuplicateShadow is the sentinel wrapped by ErrDuplicateShadow.
var errDuplicateShadow = errors.New("shadow: duplicate shadow id")

// ErrDuplicateShadow builds the error AddShadow returns when id already
// exists on the target; callers can still match it with
// errors.Is(err, shadow.ErrDuplicate).
func ErrDuplicateShadow(id string) error {
	return fmt.Errorf("addShadow %q: %w", id, errDuplicateShadow)
}

// ErrDuplicate is the sentinel for errors.Is checks against the error
// returned by ErrDuplicateShadow.
var ErrDuplicate = errDuplicateShadow
