// Package feed multiplexes named live queries over one upstream source and
// exposes the latest snapshot of each as shared read-only state.
package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/livepitch/internal/adapters/mq/queue"
	"github.com/okian/livepitch/internal/adapters/mq/worker"
	"github.com/okian/livepitch/pkg/clock"
	"github.com/okian/livepitch/pkg/logger"
	"github.com/okian/livepitch/pkg/metrics"
)

const shutdownTimeout = 5 * time.Second

// WatchFunc receives every replacement of a slot's snapshot.
type WatchFunc func(s Snapshot)

// SlotStatus describes one slot for diagnostics.
type SlotStatus struct {
	Name       string    `json:"name"`
	Key        string    `json:"key"`
	Documents  int       `json:"documents"`
	Received   bool      `json:"received"`
	ReceivedAt time.Time `json:"receivedAt,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
}

// upstream is one shared subscription. Every slot with the same key points
// at the same upstream.
type upstream struct {
	key      string
	desc     Descriptor
	teardown Teardown

	snap    atomic.Pointer[Snapshot]
	lastErr atomic.Pointer[error]
	// pending is set while a dispatch of this upstream is queued.
	pending atomic.Bool

	watchMu  sync.Mutex
	watchers map[uint64]WatchFunc
}

// Multiplexer owns every upstream subscription of a session. Snapshots are
// swapped in wholesale the moment they arrive; watchers are then notified
// from a single dispatch worker, so watcher callbacks never run concurrently.
// Queued dispatches coalesce: a watcher always sees the latest snapshot.
type Multiplexer struct {
	src       Source
	log       logger.Logger
	clock     clock.Clock
	queueSize int

	mu        sync.RWMutex
	slots     map[string]*upstream // name -> upstream
	upstreams map[string]*upstream // key -> upstream
	watchSeq  uint64
	closed    atomic.Bool
	closeOnce sync.Once

	queue  *queue.InMemoryQueue[string]
	worker *worker.InMemoryWorker[string]
	cancel context.CancelFunc
}

// New creates a Multiplexer over src and starts its dispatch worker.
func New(src Source, opts ...Option) *Multiplexer {
	m := &Multiplexer{
		src:       src,
		log:       logger.Nop(),
		clock:     clock.Real(),
		queueSize: defaultQueueSize,
		slots:     make(map[string]*upstream),
		upstreams: make(map[string]*upstream),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.queue = queue.NewInMemoryQueue[string](queue.WithCapacity(m.queueSize))
	m.worker = worker.NewInMemoryWorker[string](m.queue, worker.HandlerFunc[string](m.dispatch),
		worker.WithName("feed-dispatch"),
		worker.WithLogger(m.log),
	)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.worker.Run(ctx)
	return m
}

// Subscribe registers slot d.Name. Subscribing the same name with the same
// query again is a no-op; a new name whose query equals an existing one
// shares that upstream subscription.
func (m *Multiplexer) Subscribe(ctx context.Context, d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	key := d.Key()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		return ErrClosed
	}

	if up, ok := m.slots[d.Name]; ok {
		if up.key == key {
			return nil
		}
		return fmt.Errorf("%w: slot %q already bound to %q", ErrInvalidDescriptor, d.Name, up.key)
	}
	if up, ok := m.upstreams[key]; ok {
		m.slots[d.Name] = up
		m.log.Debug(ctx, "slot shares upstream", logger.String("slot", d.Name), logger.String("key", key))
		return nil
	}

	up := &upstream{key: key, desc: d, watchers: make(map[uint64]WatchFunc)}
	teardown, err := m.src.Subscribe(ctx, d, &slotHandler{m: m, up: up})
	if err != nil {
		metrics.RecordSubscriptionError(d.Name)
		m.log.Error(ctx, "subscribe failed", logger.String("slot", d.Name), logger.Error(err))
		return fmt.Errorf("%w: slot %q: %w", ErrSubscription, d.Name, err)
	}
	up.teardown = teardown
	m.upstreams[key] = up
	m.slots[d.Name] = up
	metrics.UpdateActiveSubscriptions(len(m.upstreams))
	m.log.Info(ctx, "slot subscribed", logger.String("slot", d.Name), logger.String("key", key))
	return nil
}

// Unsubscribe removes slot name. The upstream subscription is released once
// no other slot shares it. Unknown names return ErrUnknownSlot.
func (m *Multiplexer) Unsubscribe(ctx context.Context, name string) error {
	m.mu.Lock()
	up, ok := m.slots[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownSlot, name)
	}
	delete(m.slots, name)
	shared := false
	for _, other := range m.slots {
		if other == up {
			shared = true
			break
		}
	}
	if !shared {
		delete(m.upstreams, up.key)
	}
	active := len(m.upstreams)
	m.mu.Unlock()

	if shared {
		return nil
	}
	if up.teardown != nil {
		up.teardown()
	}
	up.watchMu.Lock()
	up.watchers = make(map[uint64]WatchFunc)
	up.watchMu.Unlock()
	metrics.UpdateActiveSubscriptions(active)
	m.log.Info(ctx, "slot unsubscribed", logger.String("slot", name), logger.String("key", up.key))
	return nil
}

// Latest returns the current snapshot of a slot. ok is false if the slot is
// unknown or nothing was received yet.
func (m *Multiplexer) Latest(name string) (Snapshot, bool) {
	up := m.lookup(name)
	if up == nil {
		return Snapshot{}, false
	}
	s := up.snap.Load()
	if s == nil {
		return Snapshot{}, false
	}
	return *s, true
}

// Err returns the last subscription error of a slot, cleared by the next
// successful snapshot.
func (m *Multiplexer) Err(name string) error {
	up := m.lookup(name)
	if up == nil {
		return ErrUnknownSlot
	}
	if e := up.lastErr.Load(); e != nil {
		return *e
	}
	return nil
}

// Watch calls fn after every replacement of the slot's snapshot. If a
// snapshot is already present fn is also called with it. The returned func
// stops the watch.
func (m *Multiplexer) Watch(name string, fn WatchFunc) (func(), error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	up := m.lookup(name)
	if up == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, name)
	}

	m.mu.Lock()
	m.watchSeq++
	id := m.watchSeq
	m.mu.Unlock()

	up.watchMu.Lock()
	up.watchers[id] = fn
	up.watchMu.Unlock()

	if up.snap.Load() != nil {
		m.schedule(up)
	}
	return func() {
		up.watchMu.Lock()
		defer up.watchMu.Unlock()
		delete(up.watchers, id)
	}, nil
}

// Slots returns the status of every slot sorted by name.
func (m *Multiplexer) Slots() []SlotStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SlotStatus, 0, len(m.slots))
	for name, up := range m.slots {
		st := SlotStatus{Name: name, Key: up.key}
		if s := up.snap.Load(); s != nil {
			st.Received = true
			st.Documents = len(s.Documents)
			st.ReceivedAt = s.ReceivedAt
		}
		if e := up.lastErr.Load(); e != nil {
			st.LastError = (*e).Error()
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close releases every upstream subscription and stops the dispatch worker.
// Snapshots already handed out are never touched again. It is safe to call
// more than once.
func (m *Multiplexer) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)

		m.mu.Lock()
		ups := make([]*upstream, 0, len(m.upstreams))
		for _, up := range m.upstreams {
			ups = append(ups, up)
		}
		m.mu.Unlock()

		for _, up := range ups {
			if up.teardown != nil {
				up.teardown()
			}
		}
		metrics.UpdateActiveSubscriptions(0)

		_ = m.queue.Close()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := m.worker.Shutdown(ctx); err != nil {
			m.log.Warn(ctx, "dispatch worker did not stop", logger.Error(err))
		}
		m.cancel()
		m.log.Info(ctx, "feed multiplexer closed", logger.Int("upstreams", len(ups)))
	})
	return nil
}

func (m *Multiplexer) lookup(name string) *upstream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slots[name]
}

func (m *Multiplexer) byKey(key string) *upstream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upstreams[key]
}

// schedule queues a dispatch unless one is already pending.
func (m *Multiplexer) schedule(up *upstream) {
	if !up.pending.CompareAndSwap(false, true) {
		return
	}
	if !m.queue.Enqueue(context.Background(), up.key) {
		up.pending.Store(false)
		if !m.closed.Load() {
			m.log.Warn(context.Background(), "dispatch queue full", logger.String("key", up.key))
		}
	}
}

func (m *Multiplexer) dispatch(ctx context.Context, key string) error {
	up := m.byKey(key)
	if up == nil {
		return nil
	}
	up.pending.Store(false)
	s := up.snap.Load()
	if s == nil || m.closed.Load() {
		return nil
	}
	metrics.RecordDispatchLatency(float64(m.clock.Now().Sub(s.ReceivedAt).Milliseconds()))

	up.watchMu.Lock()
	fns := make([]WatchFunc, 0, len(up.watchers))
	for _, fn := range up.watchers {
		fns = append(fns, fn)
	}
	up.watchMu.Unlock()

	for _, fn := range fns {
		fn(*s)
	}
	return nil
}

// slotHandler receives callbacks for one upstream.
type slotHandler struct {
	m  *Multiplexer
	up *upstream
}

func (h *slotHandler) OnSnapshot(s Snapshot) {
	if h.m.closed.Load() {
		return
	}
	s.Key = h.up.key
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = h.m.clock.Now()
	}
	if s.Documents == nil {
		s.Documents = []Document{}
	}
	h.up.snap.Store(&s)
	h.up.lastErr.Store(nil)
	metrics.RecordSnapshotApplied(h.up.desc.Name)
	h.m.schedule(h.up)
}

func (h *slotHandler) OnError(err error) {
	if h.m.closed.Load() || err == nil {
		return
	}
	wrapped := fmt.Errorf("%w: slot %q: %w", ErrSubscription, h.up.desc.Name, err)
	h.up.lastErr.Store(&wrapped)
	metrics.RecordSubscriptionError(h.up.desc.Name)
	h.m.log.Warn(context.Background(), "subscription error",
		logger.String("slot", h.up.desc.Name),
		logger.String("key", h.up.key),
		logger.Error(err))
}
