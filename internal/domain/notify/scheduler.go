// Package notify owns the single on-screen notification: it shows fresh feed
// events, synthesizes fallback events on a random renewal schedule and
// dismisses whatever is visible after a fixed window.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/livepitch/internal/domain/dedupe"
	"github.com/okian/livepitch/internal/domain/model"
	"github.com/okian/livepitch/pkg/clock"
	"github.com/okian/livepitch/pkg/logger"
	"github.com/okian/livepitch/pkg/metrics"
)

// Default timings.
const (
	DefaultFreshness        = 10 * time.Second
	DefaultExternalDismiss  = 5 * time.Second
	DefaultMinDelay         = 15 * time.Second
	DefaultMaxDelay         = 45 * time.Second
	DefaultSyntheticDismiss = 4 * time.Second
)

// State is the scheduler state.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
)

// WatchFunc receives a notification and whether it is now visible. A false
// flag means n was dismissed.
type WatchFunc func(n model.Notification, visible bool)

// change is a state transition to report to watchers once the lock is
// released.
type change struct {
	n       model.Notification
	visible bool
	emit    bool
}

// Scheduler is the notification state machine. At most one timer is armed at
// a time: either the synthetic delay or the dismissal of the visible
// notification. Every armed timer carries the generation current at arming;
// a firing whose generation is stale does nothing.
//
// emitMu is held from a state change until its watchers have returned, so
// watchers see changes in the order they happened. It is taken before mu.
type Scheduler struct {
	emitMu sync.Mutex
	mu     sync.Mutex

	clock clock.Clock
	rand  RandomSource
	log   logger.Logger
	seen  dedupe.Deduper

	mode             Mode
	freshness        time.Duration
	externalDismiss  time.Duration
	minDelay         time.Duration
	maxDelay         time.Duration
	syntheticDismiss time.Duration
	catalog          []Template

	current  *model.Notification
	gen      uint64
	timer    clock.Timer
	started  bool
	closed   bool
	watchers map[uint64]WatchFunc
	watchSeq uint64
}

// New creates a Scheduler. It stays idle until Start.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:            clock.Real(),
		rand:             defaultRandom{},
		log:              logger.Nop(),
		mode:             ModeSynthetic,
		freshness:        DefaultFreshness,
		externalDismiss:  DefaultExternalDismiss,
		minDelay:         DefaultMinDelay,
		maxDelay:         DefaultMaxDelay,
		syntheticDismiss: DefaultSyntheticDismiss,
		catalog:          DefaultCatalog(),
		watchers:         make(map[uint64]WatchFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seen == nil {
		s.seen = dedupe.NewInMemoryDeduper()
	}
	return s
}

// Mode returns the effective entry mode.
func (s *Scheduler) Mode() Mode { return s.mode }

// Start begins synthetic scheduling when the mode allows it. Calling Start
// twice is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return nil
	}
	s.started = true
	if s.mode.generates() && s.current == nil {
		s.armSyntheticLocked()
	}
	s.log.Info(context.Background(), "notification scheduler started", logger.String("mode", string(s.mode)))
	return nil
}

// OnExternalEvent handles a change of the most recent feed event. A nil
// event, an event at least as old as the freshness window or an event
// already shown is ignored, and any pending timer is left alone. A fresh
// event preempts whatever is visible and cancels the pending timer.
func (s *Scheduler) OnExternalEvent(ctx context.Context, ev *model.MatchEvent) {
	if ev == nil {
		return
	}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	if s.closed || !s.mode.acceptsExternal() {
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()
	if age := ev.Age(now); age >= s.freshness {
		s.mu.Unlock()
		metrics.RecordStaleEventIgnored()
		s.log.Debug(ctx, "stale event ignored", logger.String("event_id", ev.ID), logger.Duration("age", age))
		return
	}
	if ev.ID != "" && s.seen.SeenAndRecord(ctx, ev.ID) {
		s.mu.Unlock()
		metrics.RecordDuplicateEvent()
		s.log.Debug(ctx, "duplicate event ignored", logger.String("event_id", ev.ID))
		return
	}

	s.cancelLocked()
	category, msg := fromEvent(*ev)
	n := model.Notification{
		ID:        uuid.NewString(),
		Category:  category,
		Message:   msg,
		Source:    model.SourceExternal,
		EventID:   ev.ID,
		ShownAt:   now,
		ExpiresAt: now.Add(s.externalDismiss),
	}
	s.current = &n
	s.armLocked(s.externalDismiss, s.dismissLocked)
	s.mu.Unlock()

	metrics.RecordNotificationShown(string(n.Source), string(n.Category))
	s.log.Info(ctx, "notification shown",
		logger.String("source", string(n.Source)),
		logger.String("category", string(n.Category)),
		logger.String("event_id", ev.ID))
	s.emit(change{n: n, visible: true, emit: true})
}

// Current returns the visible notification, if any.
func (s *Scheduler) Current() (model.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.Notification{}, false
	}
	return *s.current, true
}

// State reports whether a notification is visible.
func (s *Scheduler) State() State {
	if _, ok := s.Current(); ok {
		return StateActive
	}
	return StateIdle
}

// Watch registers fn for every show and dismissal. Calls are serialized and
// follow the order of the changes. fn must not call OnExternalEvent. The
// returned func unregisters it.
func (s *Scheduler) Watch(fn WatchFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || fn == nil {
		return func() {}
	}
	s.watchSeq++
	id := s.watchSeq
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

// Close stops every timer and drops the visible notification. It is safe to
// call more than once.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancelLocked()
	s.current = nil
	s.watchers = make(map[uint64]WatchFunc)
	s.seen.Reset()
}

func (s *Scheduler) armLocked(d time.Duration, fn func() change) {
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() { s.fire(gen, fn) })
}

func (s *Scheduler) fire(gen uint64, fn func() change) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	c := fn()
	s.mu.Unlock()
	s.emit(c)
}

// cancelLocked stops the pending timer and invalidates its generation.
func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		if s.timer.Stop() {
			metrics.RecordTimerCancelled()
		}
		s.timer = nil
	}
	s.gen++
}

func (s *Scheduler) dismissLocked() change {
	if s.current == nil {
		return change{}
	}
	n := *s.current
	s.current = nil
	metrics.RecordNotificationDismissed(string(n.Source))
	if s.started && s.mode.generates() {
		s.armSyntheticLocked()
	}
	return change{n: n, visible: false, emit: true}
}

func (s *Scheduler) triggerLocked() change {
	t := s.catalog[s.rand.Intn(len(s.catalog))]
	now := s.clock.Now()
	n := model.Notification{
		ID:        uuid.NewString(),
		Category:  t.Category,
		Message:   t.Message,
		Color:     t.Color,
		Source:    model.SourceSynthetic,
		ShownAt:   now,
		ExpiresAt: now.Add(s.syntheticDismiss),
	}
	s.current = &n
	s.armLocked(s.syntheticDismiss, s.dismissLocked)
	metrics.RecordNotificationShown(string(n.Source), string(n.Category))
	return change{n: n, visible: true, emit: true}
}

func (s *Scheduler) armSyntheticLocked() {
	d := s.nextDelay()
	metrics.RecordSyntheticDelay(d)
	s.armLocked(d, s.triggerLocked)
}

// nextDelay draws a delay uniformly from [minDelay, maxDelay).
func (s *Scheduler) nextDelay() time.Duration {
	span := s.maxDelay - s.minDelay
	if span <= 0 {
		return s.minDelay
	}
	d := s.minDelay + time.Duration(s.rand.Float64()*float64(span))
	if d >= s.maxDelay {
		d = s.maxDelay - 1
	}
	return d
}

func (s *Scheduler) emit(c change) {
	if !c.emit {
		return
	}
	s.mu.Lock()
	fns := make([]WatchFunc, 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(c.n, c.visible)
	}
}
