// Package apperr holds the error taxonomy shared by controllers and transports.
package apperr

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")
	// ErrFetchFailure marks a repository that was unreachable or too slow.
	// Controllers degrade it to an empty result set.
	ErrFetchFailure = errors.New("fetch failure")
)

// IsCancelled reports whether err is an expected cancellation that must not
// surface to the UI or to logs. Deadline expiry is a fetch failure, not a
// cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
