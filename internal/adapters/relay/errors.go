package relay

import "errors"

// Sentinel kinds for bus and transport errors.
var (
	ErrPublishFailed   = errors.New("publish failed on all relays")
	ErrSubscribeFailed = errors.New("subscribe failed")
	ErrNotConnected    = errors.New("relay not connected")
	ErrBusClosed       = errors.New("bus closed")
	ErrRejected        = errors.New("relay rejected event")
)
