package feedsim

import (
	"math/rand/v2"
	"time"

	"github.com/okian/livepitch/pkg/logger"
)

// Defaults.
const (
	DefaultMatches  = 4
	DefaultInterval = time.Second
	DefaultWidth    = 600
	DefaultHeight   = 400
	DefaultPlayers  = 11
	// DefaultEventHistory bounds the global events collection.
	DefaultEventHistory = 20
)

// Option applies a configuration option to the Simulator.
type Option func(*Simulator)

// WithMatches sets how many concurrent matches are simulated.
func WithMatches(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.matchCount = n
		}
	}
}

// WithInterval sets the step period used by Run.
func WithInterval(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithPitch sets the telemetry coordinate space.
func WithPitch(w, h int) Option {
	return func(s *Simulator) {
		if w > 0 && h > 0 {
			s.width, s.height = float64(w), float64(h)
		}
	}
}

// WithPlayers sets the number of players per side.
func WithPlayers(n int) Option {
	return func(s *Simulator) {
		if n >= 0 {
			s.players = n
		}
	}
}

// WithSeed makes the simulation deterministic.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) {
		s.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.log = l
		}
	}
}
