// Package service wires the feed multiplexer to the presentation
// components and exposes their state to the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"sync"

	"github.com/okian/livepitch/internal/adapters/source/memory"
	"github.com/okian/livepitch/internal/domain/dedupe"
	"github.com/okian/livepitch/internal/domain/model"
	"github.com/okian/livepitch/internal/domain/notify"
	"github.com/okian/livepitch/internal/domain/pressure"
	"github.com/okian/livepitch/internal/domain/ticker"
	"github.com/okian/livepitch/internal/domain/types"
	"github.com/okian/livepitch/internal/feed"
	"github.com/okian/livepitch/internal/feedsim"
	"github.com/okian/livepitch/internal/render"
	"github.com/okian/livepitch/pkg/clock"
	"github.com/okian/livepitch/pkg/logger"
)

// Slot names registered with the multiplexer.
const (
	SlotMatches   = "matches"
	SlotLive      = "live"
	SlotEvents    = "events"
	SlotTelemetry = "telemetry"
	SlotPressure  = "pressure"
)

// Update kinds pushed to watchers.
const (
	UpdateNotification = "notification"
	UpdateTicker       = "ticker"
	UpdateMatches      = "matches"
	UpdatePressure     = "pressure"
	UpdateTelemetry    = "telemetry"
)

// pitchGreen is the canvas background.
var pitchGreen = color.RGBA{R: 0x14, G: 0x53, B: 0x2d, A: 0xff}

// ErrNotStarted is returned by operations that need a running service.
var ErrNotStarted = errors.New("service not started")

// Update and PressureView are shared with the HTTP layer.
type (
	Update       = types.Update
	PressureView = types.PressureView
)

// Service owns the multiplexer and every presentation component.
type Service struct {
	mu sync.RWMutex

	// Core components
	src       feed.Source
	mux       *feed.Multiplexer
	scheduler *notify.Scheduler
	ticker    *ticker.Controller
	renderer  *render.Renderer
	smoother  *pressure.Smoother
	estimator *pressure.Estimator
	sim       *feedsim.Simulator

	surfaceMu sync.Mutex
	surface   *render.ImageSurface

	// Configuration
	external   bool
	mode       notify.Mode
	notifyOpts []notify.Option
	tickerOpts []ticker.Option
	simOpts    []feedsim.Option
	canvasW    int
	canvasH    int
	pinned     string
	alpha      float64
	weights    map[string]float64
	dedupeSize int
	queueSize  int
	clock      clock.Clock

	// Presentation state
	stateMu  sync.RWMutex
	matches  []model.LiveMatch
	frame    *model.TelemetryFrame
	focus    string
	pressure PressureView
	// explicit is set once the focus match publishes its own pressure.
	explicit bool

	watchMu  sync.Mutex
	watchers map[uint64]func(Update)
	watchSeq uint64

	// State
	started  bool
	cancels  []func()
	simStop  context.CancelFunc
	simDone  chan struct{}
	resolved notify.Mode

	// Logging
	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		mode:       notify.ModeAuto,
		canvasW:    600,
		canvasH:    400,
		alpha:      0.3,
		dedupeSize: dedupe.DefaultMaxSize,
		clock:      clock.Real(),
		watchers:   make(map[uint64]func(Update)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components, subscribes every slot and starts the
// simulator when no upstream was configured.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting presentation service...")

	s.resolved = s.mode.Resolve(s.external)
	if s.src == nil {
		mem := memory.New()
		s.src = mem
		s.sim = feedsim.New(mem, append([]feedsim.Option{
			feedsim.WithPitch(s.canvasW, s.canvasH),
			feedsim.WithLogger(s.logger.Named("feedsim")),
		}, s.simOpts...)...)
	}

	s.mux = feed.New(s.src,
		feed.WithLogger(s.logger.Named("feed")),
		feed.WithClock(s.clock),
		feed.WithQueueSize(s.queueSize),
	)
	s.scheduler = notify.New(append(append([]notify.Option{
		notify.WithClock(s.clock),
		notify.WithLogger(s.logger.Named("notify")),
		notify.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))),
	}, s.notifyOpts...), notify.WithMode(s.resolved))...)
	s.ticker = ticker.New(append([]ticker.Option{
		ticker.WithClock(s.clock),
		ticker.WithLogger(s.logger.Named("ticker")),
	}, s.tickerOpts...)...)
	s.renderer = render.New(render.WithLogger(s.logger.Named("render")))
	s.surface = render.NewImageSurface(s.canvasW, s.canvasH, pitchGreen)
	s.smoother = pressure.NewSmoother(s.alpha)
	s.estimator = pressure.NewEstimator(pressure.WithWeights(s.weights))

	s.cancels = append(s.cancels,
		s.scheduler.Watch(func(n model.Notification, visible bool) {
			if !visible {
				s.publish(Update{Kind: UpdateNotification, Data: types.NotificationDismissal{Dismissed: n.ID}})
				return
			}
			s.publish(Update{Kind: UpdateNotification, Data: types.NewNotificationView(n)})
		}),
		s.ticker.Watch(func(v ticker.View, ok bool) {
			if !ok {
				s.publish(Update{Kind: UpdateTicker})
				return
			}
			s.publish(Update{Kind: UpdateTicker, Data: v})
		}),
	)

	slots := []struct {
		desc feed.Descriptor
		fn   feed.WatchFunc
	}{
		{feed.AllMatches(SlotMatches), s.onMatches},
		{feed.LiveMatches(SlotLive), s.onLive},
		{feed.LatestEvent(SlotEvents), s.onEvent},
	}
	for _, slot := range slots {
		if err := s.watchSlot(ctx, slot.desc, slot.fn); err != nil {
			s.teardownLocked(ctx)
			return err
		}
	}
	if s.pinned != "" {
		if err := s.refocus(ctx, s.pinned); err != nil {
			s.teardownLocked(ctx)
			return err
		}
	}

	if err := s.scheduler.Start(); err != nil {
		s.teardownLocked(ctx)
		return fmt.Errorf("start scheduler: %w", err)
	}

	if s.sim != nil {
		simCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.simStop = cancel
		s.simDone = make(chan struct{})
		go func() {
			defer close(s.simDone)
			_ = s.sim.Run(simCtx)
		}()
	}

	s.started = true
	s.logger.Info(ctx, "presentation service started",
		logger.String("mode", string(s.resolved)),
		logger.Bool("external_feed", s.external),
		logger.String("focus", s.pinned),
		logger.Int("canvas_width", s.canvasW),
		logger.Int("canvas_height", s.canvasH),
	)
	return nil
}

// Stop releases every subscription and timer. It is safe to call more than
// once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping presentation service...")
	s.teardownLocked(ctx)
	s.started = false
	s.logger.Info(ctx, "presentation service stopped")
}

func (s *Service) teardownLocked(ctx context.Context) {
	if s.simStop != nil {
		s.simStop()
		<-s.simDone
		s.simStop = nil
	}
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
	if s.scheduler != nil {
		s.scheduler.Close()
	}
	if s.ticker != nil {
		s.ticker.Close()
	}
	if s.mux != nil {
		if err := s.mux.Close(); err != nil {
			s.logger.Warn(ctx, "multiplexer close failed", logger.Error(err))
		}
	}
}

// Mode returns the resolved notification mode.
func (s *Service) Mode() notify.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolved
}

// Watch registers fn for every presentation update. fn must not block.
func (s *Service) Watch(fn func(Update)) func() {
	s.watchMu.Lock()
	s.watchSeq++
	id := s.watchSeq
	s.watchers[id] = fn
	s.watchMu.Unlock()

	return func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *Service) publish(u Update) {
	s.watchMu.Lock()
	fns := make([]func(Update), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchMu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

// Notification returns the visible notification.
func (s *Service) Notification() (types.NotificationView, bool) {
	sched := s.notifier()
	if sched == nil {
		return types.NotificationView{}, false
	}
	n, ok := sched.Current()
	if !ok {
		return types.NotificationView{}, false
	}
	return types.NewNotificationView(n), true
}

// Ticker returns the ticker entry on display.
func (s *Service) Ticker() (ticker.View, bool) {
	s.mu.RLock()
	t := s.ticker
	s.mu.RUnlock()
	if t == nil {
		return ticker.View{}, false
	}
	return t.Current()
}

// Matches returns the latest decoded matches.
func (s *Service) Matches() []model.LiveMatch {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.matches
}

// Pressure returns the momentum indicator of the focus match.
func (s *Service) Pressure() PressureView {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.pressure
}

// Telemetry returns the latest frame of the focus match, or nil.
func (s *Service) Telemetry() *model.TelemetryFrame {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.frame
}

// Focus returns the id of the focus match.
func (s *Service) Focus() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.focus
}

// RenderPNG writes the current canvas as PNG.
func (s *Service) RenderPNG(w io.Writer) error {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	s.surfaceMu.Lock()
	defer s.surfaceMu.Unlock()
	return s.surface.EncodePNG(w)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"mode":          string(s.resolved),
		"externalFeed":  s.external,
		"pinnedMatchId": s.pinned,
		"canvas":        map[string]int{"width": s.canvasW, "height": s.canvasH},
	}
	if !s.started {
		return stats
	}

	s.stateMu.RLock()
	stats["focusMatchId"] = s.focus
	stats["matches"] = len(s.matches)
	stats["hasTelemetry"] = s.frame != nil
	s.stateMu.RUnlock()

	stats["slots"] = s.mux.Slots()
	stats["notificationState"] = string(s.scheduler.State())
	stats["tickerIndex"] = s.ticker.Index()
	if s.sim != nil {
		stats["simulatorSteps"] = s.sim.Steps()
	}
	return stats
}

func (s *Service) notifier() *notify.Scheduler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduler
}
