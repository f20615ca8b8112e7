// Package apperr holds the error taxonomy shared by the domain packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized means the caller has no valid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the session exists but may not perform the action.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports user input that failed a local precondition.
// The operation was not attempted.
type ValidationError struct {
	Field   string
	Message string
}

// Validation builds a ValidationError.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// RemoteUnavailableError wraps a failure of the document store, cache or a
// remote feed.
type RemoteUnavailableError struct {
	Op  string
	Err error
}

// Remote wraps err as a RemoteUnavailableError unless it is nil.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteUnavailableError{Op: op, Err: err}
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("%s: remote unavailable: %v", e.Op, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsRemote reports whether err carries a RemoteUnavailableError.
func IsRemote(err error) bool {
	var r *RemoteUnavailableError
	return errors.As(err, &r)
}
