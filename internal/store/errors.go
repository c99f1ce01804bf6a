package store

import "errors"

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("store: key not found")

	// ErrUnavailable is returned when the backend cannot be reached.
	ErrUnavailable = errors.New("store: backend unavailable")
)
