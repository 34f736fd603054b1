package client

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the service reports that a flag does not
// exist. Callers that only need an enabled/disabled answer should use
// Enabled, which already maps missing flags to disabled.
var ErrNotFound = errors.New("flag not found")

// AuthError indicates the request itself was invalid: a missing or
// rejected credential. It is never masked by cached data downstream.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (status %d): %s", e.Status, e.Message)
}

// TransportError indicates a network-level failure or timeout talking
// to the flag service. The flag cache absorbs these when it holds prior
// data for the flag.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
