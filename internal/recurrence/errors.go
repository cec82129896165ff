package recurrence

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateInstance is returned by a Store when an instance for the same
	// template and start time already exists.
	ErrDuplicateInstance = errors.New("instance already materialized")
)

// ValidationError rejects a malformed rule before any generation happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid recurrence %s: %s", e.Field, e.Message)
}

// LimitError rejects a rule whose estimated instance count is over the cap.
type LimitError struct {
	Estimated int
	Max       int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("recurring pattern would create approximately %d instances, exceeding the maximum of %d", e.Estimated, e.Max)
}

// IsValidation reports whether err is a rule rejection (malformed or over the cap).
func IsValidation(err error) bool {
	var ve *ValidationError
	var le *LimitError
	return errors.As(err, &ve) || errors.As(err, &le)
}
