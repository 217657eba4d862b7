package wsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/okian/livepitch/internal/feed"
	"github.com/okian/livepitch/pkg/logger"
	"github.com/okian/livepitch/pkg/metrics"
	"golang.org/x/time/rate"
)

type subscription struct {
	id   string
	desc feed.Descriptor
	h    feed.Handler
}

// Client is a feed.Source backed by a websocket connection. It reconnects
// with rate-limited dial attempts and re-subscribes everything on each new
// connection.
type Client struct {
	url            string
	log            logger.Logger
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	keepAlive      time.Duration
	limiter        *rate.Limiter

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    map[string]*subscription
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}

	writeMu sync.Mutex
	// dispatchMu is held while a handler runs so that teardown can wait
	// for an in-flight callback.
	dispatchMu sync.Mutex
}

var _ feed.Source = (*Client)(nil)

// New creates a Client for url. Call Start to connect.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:            url,
		log:            logger.Nop(),
		dialer:         websocket.DefaultDialer,
		reconnectDelay: defaultReconnectDelay,
		keepAlive:      defaultKeepAlive,
		subs:           make(map[string]*subscription),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.limiter = rate.NewLimiter(rate.Every(c.reconnectDelay), 1)
	return c
}

// Start runs the connection loop in the background until Close.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return nil
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
	return nil
}

// Subscribe registers a query. It is sent immediately when connected and
// re-sent after every reconnect. The returned teardown must not be called
// from inside a handler callback.
func (c *Client) Subscribe(ctx context.Context, d feed.Descriptor, h feed.Handler) (feed.Teardown, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	sub := &subscription{id: uuid.NewString(), desc: d, h: h}
	c.subs[sub.id] = sub
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		if err := c.send(conn, Request{Op: OpSubscribe, ID: sub.id, Query: &sub.desc}); err != nil {
			c.log.Warn(ctx, "subscribe send failed, will retry on reconnect", logger.String("slot", d.Name), logger.Error(err))
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { c.unsubscribe(sub.id) })
	}, nil
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close stops the connection loop and drops every subscription. It is safe
// to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	cancel := c.cancel
	conn := c.conn
	c.subs = make(map[string]*subscription)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if started {
		<-c.done
	}
	return nil
}

func (c *Client) unsubscribe(id string) {
	c.dispatchMu.Lock()
	c.mu.Lock()
	_, ok := c.subs[id]
	delete(c.subs, id)
	conn := c.conn
	c.mu.Unlock()
	c.dispatchMu.Unlock()

	if ok && conn != nil {
		_ = c.send(conn, Request{Op: OpUnsubscribe, ID: id})
	}
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn(ctx, "feed dial failed", logger.String("url", c.url), logger.Error(err))
			metrics.RecordUpstreamReconnect()
			continue
		}

		c.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		metrics.RecordUpstreamReconnect()
		c.broadcastError(ErrDisconnected)
	}
}

// serve owns one connection until it fails or ctx ends.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	subs := make([]*subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	c.log.Info(ctx, "feed connected", logger.String("url", c.url), logger.Int("subscriptions", len(subs)))
	for _, s := range subs {
		if err := c.send(conn, Request{Op: OpSubscribe, ID: s.id, Query: &s.desc}); err != nil {
			c.log.Warn(ctx, "resubscribe failed", logger.String("slot", s.desc.Name), logger.Error(err))
			return
		}
	}

	deadline := 2 * c.keepAlive
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go c.pingLoop(pingCtx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn(ctx, "feed read loop ended", logger.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(deadline))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			metrics.RecordMalformedDocument("wire")
			c.log.Warn(ctx, "undecodable feed message", logger.Error(err))
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.log.Warn(ctx, "feed ping failed", logger.Error(err))
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *Client) dispatch(msg Message) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	sub, ok := c.subs[msg.ID]
	c.mu.Unlock()
	if !ok {
		return
	}

	switch msg.Type {
	case TypeSnapshot:
		docs := msg.Documents
		if docs == nil {
			docs = []feed.Document{}
		}
		sub.h.OnSnapshot(feed.Snapshot{Documents: docs})
	case TypeError:
		sub.h.OnError(fmt.Errorf("%w: %s", ErrRemote, msg.Error))
	default:
		c.log.Debug(context.Background(), "unknown feed message type", logger.String("type", msg.Type))
	}
}

func (c *Client) broadcastError(err error) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	subs := make([]*subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.h.OnError(err)
	}
}

func (c *Client) send(conn *websocket.Conn, req Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write %s: %w", req.Op, err)
	}
	return nil
}
