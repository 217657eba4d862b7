package wsfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/livepitch/internal/feed"
	"github.com/okian/livepitch/pkg/logger"
	"github.com/okian/livepitch/pkg/metrics"
)

// Server exposes a feed.Source over the websocket protocol.
type Server struct {
	src         feed.Source
	log         logger.Logger
	checkOrigin func(origin string) bool
	upgrader    websocket.Upgrader
}

// NewServer creates a Server over src.
func NewServer(src feed.Source, opts ...ServerOption) *Server {
	s := &Server{src: src, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if s.checkOrigin == nil {
				return true
			}
			return s.checkOrigin(r.Header.Get("Origin"))
		},
	}
	return s
}

// ServeHTTP upgrades the request and serves subscriptions until the peer
// disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	sess := &session{srv: s, conn: conn, subs: make(map[string]feed.Teardown)}
	sess.serve(r.Context())
}

type session struct {
	srv  *Server
	conn *websocket.Conn

	writeMu sync.Mutex
	mu      sync.Mutex
	subs    map[string]feed.Teardown
}

func (ss *session) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer ss.close()

	ss.srv.log.Info(ctx, "feed client connected", logger.String("remote", ss.conn.RemoteAddr().String()))
	for {
		_, data, err := ss.conn.ReadMessage()
		if err != nil {
			ss.srv.log.Debug(ctx, "feed client gone", logger.Error(err))
			return
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			metrics.RecordMalformedDocument("wire")
			ss.write(Message{Type: TypeError, Error: "malformed request"})
			continue
		}
		switch req.Op {
		case OpSubscribe:
			ss.subscribe(ctx, req)
		case OpUnsubscribe:
			ss.unsubscribe(req.ID)
		default:
			ss.write(Message{Type: TypeError, ID: req.ID, Error: "unknown op " + req.Op})
		}
	}
}

func (ss *session) subscribe(ctx context.Context, req Request) {
	if req.ID == "" || req.Query == nil {
		ss.write(Message{Type: TypeError, ID: req.ID, Error: "subscribe needs id and query"})
		return
	}
	ss.unsubscribe(req.ID)

	id := req.ID
	td, err := ss.srv.src.Subscribe(ctx, *req.Query, feed.HandlerFuncs{
		Snapshot: func(snap feed.Snapshot) {
			ss.write(Message{Type: TypeSnapshot, ID: id, Documents: snap.Documents})
		},
		Error: func(err error) {
			ss.write(Message{Type: TypeError, ID: id, Error: err.Error()})
		},
	})
	if err != nil {
		ss.write(Message{Type: TypeError, ID: id, Error: err.Error()})
		return
	}

	ss.mu.Lock()
	ss.subs[id] = td
	ss.mu.Unlock()
}

func (ss *session) unsubscribe(id string) {
	ss.mu.Lock()
	td, ok := ss.subs[id]
	delete(ss.subs, id)
	ss.mu.Unlock()
	if ok {
		td()
	}
}

func (ss *session) close() {
	ss.mu.Lock()
	subs := ss.subs
	ss.subs = make(map[string]feed.Teardown)
	ss.mu.Unlock()
	for _, td := range subs {
		td()
	}
	_ = ss.conn.Close()
}

func (ss *session) write(msg Message) {
	ss.writeMu.Lock()
	defer ss.writeMu.Unlock()
	_ = ss.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ss.conn.WriteJSON(msg); err != nil {
		ss.srv.log.Debug(context.Background(), "feed write failed", logger.Error(err))
	}
}
