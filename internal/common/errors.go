package common

import "errors"

// Callers should match these values with errors.Is.
var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Remote store errors. Timeouts, transport failures and malformed
	// responses all collapse into ErrRemoteUnavailable.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// Validation errors, reported before any write is attempted.
	ErrDuplicateUsername = errors.New("username already in use")
	ErrMissingContact    = errors.New("email and phone are required")
	ErrDepthLimit        = errors.New("matrix depth limit reached")

	// Auth errors.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNotAuthorized      = errors.New("not authorized")
)
