package core

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheMiss is returned by a ResultCache when no entry exists for a
	// fingerprint.
	ErrCacheMiss = errors.New("cache entry not found")

	// ErrMessageNotFound is returned by a MessageStore for unknown ids.
	ErrMessageNotFound = errors.New("message not found")
)

// ValidationError rejects a message at the ingestion boundary before any
// side effect happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message: %s", e.Reason)
}

// IsValidationError reports whether err is a message validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
