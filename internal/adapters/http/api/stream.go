package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/okian/livepitch/internal/domain/types"
	"github.com/okian/livepitch/pkg/logger"
	"github.com/okian/livepitch/pkg/metrics"
)

const (
	defaultStreamBuffer = 64
	heartbeatInterval   = 15 * time.Second
	// replaySize is how many events a reconnecting client can resume from.
	replaySize = 256
)

// readyEvent is the first event of every stream that is not resumed.
const readyEvent = "ready"

type streamEvent struct {
	id   int64
	kind string
	data []byte
}

type streamClient struct {
	id     uint64
	events chan streamEvent
}

// Hub fans presentation updates out to server-sent event clients. Slow
// clients miss events rather than block publishers.
type Hub struct {
	deps      Dependencies
	log       logger.Logger
	buffer    int
	heartbeat time.Duration

	mu         sync.Mutex
	clients    map[uint64]*streamClient
	nextClient uint64
	seq        int64
	history    []streamEvent

	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates a hub. deps supplies the snapshot sent on connect.
func NewHub(deps Dependencies, log logger.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultStreamBuffer
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		deps:      deps,
		log:       log,
		buffer:    buffer,
		heartbeat: heartbeatInterval,
		clients:   make(map[uint64]*streamClient),
		done:      make(chan struct{}),
	}
}

// Publish assigns the next event id to u and queues it for every client.
func (h *Hub) Publish(u types.Update) {
	data, err := json.Marshal(u.Data)
	if err != nil {
		h.log.Warn(context.Background(), "stream event not encodable", logger.String("kind", u.Kind), logger.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	ev := streamEvent{id: h.seq, kind: u.Kind, data: data}
	h.history = append(h.history, ev)
	if len(h.history) > replaySize {
		h.history = h.history[len(h.history)-replaySize:]
	}
	for _, c := range h.clients {
		select {
		case c.events <- ev:
		default:
			h.log.Debug(context.Background(), "stream client lagging, event dropped",
				logger.Int64("client", int64(c.id)), logger.Int64("event", ev.id))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client. It is safe to call more than once.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// HandleStream handles GET /stream requests. A Last-Event-ID header resumes
// from the replay buffer; otherwise the stream opens with a ready event
// carrying the full current state.
func (h *Hub) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", ErrStreamUnsupported)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	lastID := int64(0)
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			lastID = id
		}
	}

	c, readyID, backlog, resumed := h.register(lastID)
	defer h.unregister(c)

	if !resumed {
		if err := h.writeReady(w, readyID); err != nil {
			return
		}
	}
	for _, ev := range backlog {
		if err := writeEvent(w, ev); err != nil {
			return
		}
	}
	flusher.Flush()

	beat := time.NewTicker(h.heartbeat)
	defer beat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-beat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-c.events:
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// register adds a client and returns the id of the last event published
// before it, which every later event on c.events follows. When lastID is
// still covered by the replay buffer the events after it are returned and
// resumed is true. An id the hub never issued is not resumable.
func (h *Hub) register(lastID int64) (c *streamClient, readyID int64, backlog []streamEvent, resumed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextClient++
	c = &streamClient{id: h.nextClient, events: make(chan streamEvent, h.buffer)}
	h.clients[c.id] = c
	metrics.UpdateStreamClients(len(h.clients))

	readyID = h.seq
	if lastID <= 0 || lastID > h.seq || len(h.history) == 0 || h.history[0].id > lastID+1 {
		return c, readyID, nil, false
	}
	for _, ev := range h.history {
		if ev.id > lastID {
			backlog = append(backlog, ev)
		}
	}
	return c, readyID, backlog, true
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.id)
	metrics.UpdateStreamClients(len(h.clients))
}

type readyPayload struct {
	Notification *types.NotificationView `json:"notification"`
	Ticker       any                     `json:"ticker"`
	Pressure     types.PressureView      `json:"pressure"`
	Telemetry    any                     `json:"telemetry"`
	Matches      any                     `json:"matches"`
}

func (h *Hub) writeReady(w io.Writer, id int64) error {
	p := readyPayload{
		Pressure:  h.deps.Pressure(),
		Telemetry: h.deps.Telemetry(),
		Matches:   h.deps.Matches(),
	}
	if n, ok := h.deps.Notification(); ok {
		p.Notification = &n
	}
	if v, ok := h.deps.Ticker(); ok {
		p.Ticker = v
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode ready event: %w", err)
	}
	return writeEvent(w, streamEvent{id: id, kind: readyEvent, data: data})
}

func writeEvent(w io.Writer, ev streamEvent) error {
	if ev.id > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", ev.id); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.kind, ev.data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}
