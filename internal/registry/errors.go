package registry

import "errors"

// Error kinds returned by the registry. Callers match them with errors.Is;
// the transport layer maps them to status codes.
var (
	// ErrConflict reports a uniqueness violation on create.
	ErrConflict = errors.New("conflict")

	// ErrNotFound reports a lookup or delete of an absent key.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput reports a malformed identifier or a missing required field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable reports a failure of the underlying persistence layer.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnauthorized reports a privileged call without a valid Grant.
	ErrUnauthorized = errors.New("unauthorized")
)
