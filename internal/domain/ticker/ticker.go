// Package ticker rotates through a list of match summaries on a fixed period.
package ticker

import (
	"context"
	"sync"
	"time"

	"github.com/okian/livepitch/internal/domain/model"
	"github.com/okian/livepitch/pkg/clock"
	"github.com/okian/livepitch/pkg/logger"
	"github.com/okian/livepitch/pkg/metrics"
)

// DefaultPeriod is the rotation period.
const DefaultPeriod = 5 * time.Second

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithPeriod sets the rotation period.
func WithPeriod(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.period = d
		}
	}
}

// WithClock sets the time source.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WatchFunc receives the current view after every change. ok is false when
// the list is empty.
type WatchFunc func(v View, ok bool)

// Controller holds an index into a caller-supplied list and advances it every
// period while the list has more than one entry.
type Controller struct {
	mu     sync.Mutex
	clock  clock.Clock
	log    logger.Logger
	period time.Duration

	entries  []model.TickerEntry
	index    int
	gen      uint64
	timer    clock.Timer
	closed   bool
	watchers map[uint64]WatchFunc
	watchSeq uint64
}

// New creates a Controller with an empty list.
func New(opts ...Option) *Controller {
	c := &Controller{
		clock:    clock.Real(),
		log:      logger.Nop(),
		period:   DefaultPeriod,
		watchers: make(map[uint64]WatchFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEntries replaces the list. When the match ids or their order change,
// the pending rotation is cancelled and a new one armed for the new list.
// When only the content of the same matches changes, the entries are
// refreshed in place and the pending rotation keeps its deadline. The index
// is kept while it is still in range and reset to 0 otherwise.
func (c *Controller) SetEntries(entries []model.TickerEntry) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	refresh := sameMatches(c.entries, entries) && (c.timer != nil || len(entries) < 2)
	c.entries = append([]model.TickerEntry(nil), entries...)
	if !refresh {
		c.cancelLocked()
		if c.index >= len(c.entries) {
			c.index = 0
		}
		if len(c.entries) > 1 {
			c.armLocked()
		}
	}
	v, ok := c.viewLocked()
	c.mu.Unlock()

	metrics.UpdateTickerEntries(len(entries))
	c.log.Debug(context.Background(), "ticker entries replaced", logger.Int("count", len(entries)))
	c.emit(v, ok)
}

// Current returns the view of the current entry. ok is false for an empty
// list.
func (c *Controller) Current() (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Index returns the current index.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Watch registers fn for every rotation and list replacement.
func (c *Controller) Watch(fn WatchFunc) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || fn == nil {
		return func() {}
	}
	c.watchSeq++
	id := c.watchSeq
	c.watchers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers, id)
	}
}

// Close stops rotation. It is safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancelLocked()
	c.watchers = make(map[uint64]WatchFunc)
}

// sameMatches reports whether a and b list the same match ids in the same
// order.
func sameMatches(a, b []model.TickerEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].MatchID != b[i].MatchID {
			return false
		}
	}
	return true
}

func (c *Controller) armLocked() {
	c.gen++
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.period, func() { c.rotate(gen) })
}

func (c *Controller) cancelLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

func (c *Controller) rotate(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || len(c.entries) < 2 {
		c.mu.Unlock()
		return
	}
	c.index = (c.index + 1) % len(c.entries)
	c.armLocked()
	v, ok := c.viewLocked()
	c.mu.Unlock()

	metrics.RecordTickerRotation()
	c.emit(v, ok)
}

func (c *Controller) viewLocked() (View, bool) {
	if len(c.entries) == 0 {
		return View{}, false
	}
	v := Format(c.entries[c.index])
	v.Index = c.index
	v.Count = len(c.entries)
	return v, true
}

func (c *Controller) emit(v View, ok bool) {
	c.mu.Lock()
	fns := make([]WatchFunc, 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(v, ok)
	}
}
