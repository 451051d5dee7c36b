package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrItemNotFound indicates the requested movie does not exist
	ErrItemNotFound = errors.New("movie not found")

	// ErrServerOffline indicates the backend is unreachable
	ErrServerOffline = errors.New("backend is unreachable")

	// ErrAuthFailed indicates the credentials were rejected at login
	ErrAuthFailed = errors.New("email or password is incorrect")

	// ErrNotLoggedIn indicates an operation needs a loaded user aggregate
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrMutationInFlight rejects a second mutation of the same entity while
	// the first one is still pending
	ErrMutationInFlight = errors.New("mutation already in flight")

	// ErrInvalidRating indicates a rating outside 1..10
	ErrInvalidRating = errors.New("rating must be between 1 and 10")

	// ErrUnknownList indicates an unsupported list kind
	ErrUnknownList = errors.New("unknown list kind")
)
