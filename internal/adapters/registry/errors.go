package registry

import "errors"

// Sentinel kinds for session store errors.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrDuplicateSession = errors.New("session id already registered")
	ErrDuplicatePIN     = errors.New("pin already in use")
	ErrPINExhausted     = errors.New("could not generate a unique pin")
)
