package relay

import (
	"time"

	"github.com/Goosie/NostrQuizAndVote/pkg/logger"
)

// Option applies a configuration option to the Bus.
type Option func(*Bus)

// WithPublishTimeout bounds how long Publish waits for the first relay ack.
func WithPublishTimeout(timeout time.Duration) Option {
	return func(b *Bus) {
		if timeout > 0 {
			b.publishTimeout = timeout
		}
	}
}

// WithDedupeSize caps each subscription's duplicate-suppression cache.
func WithDedupeSize(size int) Option {
	return func(b *Bus) {
		if size > 0 {
			b.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the bus.
func WithLogger(log logger.Logger) Option {
	return func(b *Bus) {
		if log != nil {
			b.log = log
		}
	}
}
