package service

import (
	"github.com/okian/livepitch/internal/domain/notify"
	"github.com/okian/livepitch/internal/domain/ticker"
	"github.com/okian/livepitch/internal/feed"
	"github.com/okian/livepitch/internal/feedsim"
	"github.com/okian/livepitch/pkg/clock"
	"github.com/okian/livepitch/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource sets the upstream feed. Without one the service runs the
// built-in simulator in-process.
func WithSource(src feed.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.src = src
			s.external = true
		}
	}
}

// WithMode sets the notification mode. ModeAuto is resolved at start.
func WithMode(m notify.Mode) Option {
	return func(s *Service) {
		s.mode = m
	}
}

// WithNotifyOptions passes extra options to the notification scheduler.
func WithNotifyOptions(opts ...notify.Option) Option {
	return func(s *Service) {
		s.notifyOpts = append(s.notifyOpts, opts...)
	}
}

// WithTickerOptions passes extra options to the ticker controller.
func WithTickerOptions(opts ...ticker.Option) Option {
	return func(s *Service) {
		s.tickerOpts = append(s.tickerOpts, opts...)
	}
}

// WithSimulatorOptions configures the in-process simulator.
func WithSimulatorOptions(opts ...feedsim.Option) Option {
	return func(s *Service) {
		s.simOpts = append(s.simOpts, opts...)
	}
}

// WithCanvas sets the telemetry canvas size.
func WithCanvas(w, h int) Option {
	return func(s *Service) {
		if w > 0 && h > 0 {
			s.canvasW, s.canvasH = w, h
		}
	}
}

// WithFocusMatch pins the match whose telemetry and pressure are shown.
func WithFocusMatch(id string) Option {
	return func(s *Service) {
		s.pinned = id
	}
}

// WithPressure sets the smoothing factor and estimator weights.
func WithPressure(alpha float64, weights map[string]float64) Option {
	return func(s *Service) {
		s.alpha = alpha
		s.weights = weights
	}
}

// WithDedupeSize sets how many event ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDispatchQueueSize sets the multiplexer dispatch queue size.
func WithDispatchQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithClock sets the clock shared by every timer-driven component.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
