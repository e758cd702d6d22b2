package workspace

import (
	"errors"
	"fmt"
)

// ErrProjectNotFound is returned when an operation names a project id
// that is not in the store.
var ErrProjectNotFound = errors.New("project not found")

// ValidationError rejects a mutation synchronously. It never sets a
// project-level error flag; the caller corrects the input and retries.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
