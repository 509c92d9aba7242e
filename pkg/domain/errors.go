package domain

import "errors"

// Common domain errors
var (
	// ErrMaxRetriesExceeded is returned when all fetch attempts have been exhausted.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	// ErrEmptyResponse is returned when the fallback client produced no output.
	ErrEmptyResponse = errors.New("empty response from fallback client")
)

// SecurityError marks a request that was blocked by the validation gate.
// It is terminal: the fetcher never retries it and callers must not treat
// it as a transient transport failure. The "Security validation failed"
// prefix is part of the public contract and is matched on by callers.
type SecurityError struct {
	Err error
}

func (e *SecurityError) Error() string {
	return "Security validation failed: " + e.Err.Error()
}

func (e *SecurityError) Unwrap() error {
	return e.Err
}

// NewSecurityError wraps a validation failure in a SecurityError.
func NewSecurityError(err error) error {
	return &SecurityError{Err: err}
}

// IsSecurityError reports whether err is (or wraps) a SecurityError.
func IsSecurityError(err error) bool {
	var se *SecurityError
	return errors.As(err, &se)
}
