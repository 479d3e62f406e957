package guild

import (
	"errors"
	"fmt"
)

var (
	// ErrNotPresent is matched by every stale view access.
	ErrNotPresent = errors.New("entity not present")
	// ErrNotReady is returned by lookups made before the guild was loaded.
	ErrNotReady = errors.New("guild state not ready")
)

// NotPresentError reports that a view's backing record was removed.
type NotPresentError struct {
	Kind string
	ID   string
}

func (e *NotPresentError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, ErrNotPresent)
}

func (e *NotPresentError) Unwrap() error { return ErrNotPresent }

func notPresent(kind, id string) error {
	return &NotPresentError{Kind: kind, ID: id}
}
