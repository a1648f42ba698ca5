package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotUnavailable means the requested interval is no longer free at
	// commit time. Recoverable: the caller re-fetches slots and retries.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrNotFound means the referenced booking does not exist.
	ErrNotFound = errors.New("booking not found")

	// ErrLockBusy means the per-host serialization lock could not be
	// acquired within the bounded wait. Safe to retry with backoff.
	ErrLockBusy = errors.New("booking lock busy")
)

// ValidationError is a caller error: malformed or out-of-policy input.
// The message is safe to surface verbatim; it never carries internal
// identifiers or storage details.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a caller error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRetryable reports whether the operation may be retried with backoff
// without re-fetching slots first.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockBusy)
}
