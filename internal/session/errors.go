package session

import "errors"

var (
	// ErrNotFound is returned for unknown, terminated or expired sessions.
	ErrNotFound = errors.New("session: not found")

	// ErrLimitReached is returned by Create when MaxSessions live sessions exist.
	ErrLimitReached = errors.New("session: active session limit reached")
)
