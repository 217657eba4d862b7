package notify

import (
	"math/rand/v2"
	"time"

	"github.com/okian/livepitch/internal/domain/dedupe"
	"github.com/okian/livepitch/pkg/clock"
	"github.com/okian/livepitch/pkg/logger"
)

// RandomSource supplies randomness for synthetic scheduling.
type RandomSource interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Intn returns a value in [0, n).
	Intn(n int) int
}

type defaultRandom struct{}

func (defaultRandom) Float64() float64 { return rand.Float64() }
func (defaultRandom) Intn(n int) int   { return rand.IntN(n) }

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithMode sets the entry mode. ModeAuto is treated as ModeSynthetic; resolve
// it against the feed configuration before passing it in.
func WithMode(m Mode) Option {
	return func(s *Scheduler) {
		s.mode = m.Resolve(false)
	}
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithRandom sets the random source.
func WithRandom(r RandomSource) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.rand = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDeduper sets the store used to drop re-delivered events.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Scheduler) {
		if d != nil {
			s.seen = d
		}
	}
}

// WithFreshness sets the maximum age of an external event that still shows.
func WithFreshness(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.freshness = d
		}
	}
}

// WithExternalDismiss sets how long external notifications stay visible.
func WithExternalDismiss(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.externalDismiss = d
		}
	}
}

// WithSyntheticDelay sets the [min, max) range of the random delay before a
// synthetic notification.
func WithSyntheticDelay(minDelay, maxDelay time.Duration) Option {
	return func(s *Scheduler) {
		if minDelay <= 0 || maxDelay < minDelay {
			return
		}
		s.minDelay, s.maxDelay = minDelay, maxDelay
	}
}

// WithSyntheticDismiss sets how long synthetic notifications stay visible.
func WithSyntheticDismiss(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.syntheticDismiss = d
		}
	}
}

// WithCatalog replaces the synthetic templates. An empty catalog is ignored.
func WithCatalog(c []Template) Option {
	return func(s *Scheduler) {
		if len(c) > 0 {
			s.catalog = append([]Template(nil), c...)
		}
	}
}
