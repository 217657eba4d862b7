package feed

import (
	"github.com/okian/livepitch/pkg/clock"
	"github.com/okian/livepitch/pkg/logger"
)

const defaultQueueSize = 256

// Option applies a configuration option to the Multiplexer.
type Option func(*Multiplexer)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Multiplexer) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock sets the clock used to stamp snapshots.
func WithClock(c clock.Clock) Option {
	return func(m *Multiplexer) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithQueueSize sets the capacity of the dispatch queue.
func WithQueueSize(n int) Option {
	return func(m *Multiplexer) {
		if n > 0 {
			m.queueSize = n
		}
	}
}
