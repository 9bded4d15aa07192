package relay

import "errors"

// Error taxonomy for the relay domain.
var (
	// ErrNotFound means the connection has no membership; the triggering
	// operation is dropped without surfacing anything to other clients.
	ErrNotFound = errors.New("membership not found")

	// ErrStoreUnavailable means the shared store could not be reached. The
	// affected operation fails, the connection stays alive.
	ErrStoreUnavailable = errors.New("shared store unavailable")

	// ErrMalformedInput means an inbound event is missing a required field.
	ErrMalformedInput = errors.New("malformed input")
)
