package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")
	ErrMalformedResponse = errors.New("malformed external response")
	ErrRunNotFound       = errors.New("run not found")

	// ErrStructural marks input/configuration errors that a retry cannot fix,
	// e.g. a document that has no matching category in the guide outline.
	ErrStructural = errors.New("structural invariant violation")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
