package interfaces

import "errors"

// Sentinel errors shared by all repository implementations. Anything
// else returned by a repository is treated as a transient storage
// failure and surfaced to the caller.
var (
	// ErrNotFound is returned when a record does not exist or is not
	// owned by the requesting user.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when a value fails domain validation,
	// e.g. an unknown device type or status.
	ErrValidation = errors.New("validation failed")
)
