package app

import "errors"

var (
	// ErrNotStarted is returned when the service is used before Start.
	ErrNotStarted = errors.New("service not started")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("service already started")

	// ErrSessionClosed is returned for commands against a finished session.
	ErrSessionClosed = errors.New("session closed")

	// ErrQueueFull is returned when a host command cannot be enqueued.
	ErrQueueFull = errors.New("session command queue full")

	// ErrSessionActive is returned when final results are requested before
	// the session finished.
	ErrSessionActive = errors.New("session still active")
)
