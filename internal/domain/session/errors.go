package session

import "errors"

// Sentinel kinds for lifecycle errors.
var (
	ErrSessionClosed     = errors.New("session closed")
	ErrInvalidTransition = errors.New("invalid session transition")
)
