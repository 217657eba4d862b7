// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/okian/livepitch/internal/domain/model"
	"github.com/okian/livepitch/internal/domain/ticker"
	"github.com/okian/livepitch/internal/domain/types"
	"github.com/okian/livepitch/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider

	// Read operations expose the presentation state.
	Notification() (types.NotificationView, bool)
	Ticker() (ticker.View, bool)
	Matches() []model.LiveMatch
	Pressure() types.PressureView
	Telemetry() *model.TelemetryFrame
	RenderPNG(w io.Writer) error

	// Watch registers fn for every state change and returns its cancel.
	Watch(fn func(types.Update)) func()
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithStreamBuffer sets how many events each stream client may lag behind.
func WithStreamBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.streamBuffer = n
		}
	}
}

// Server wires HTTP routes for the presentation API.
type Server struct {
	log          logger.Logger
	streamBuffer int

	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	presentationHandler *PresentationHandler
	hub                 *Hub
	unwatch             func()
}

// NewServer creates a new API server with all handlers. The stream hub
// follows deps until Close.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		log:          logger.Nop(),
		streamBuffer: defaultStreamBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.presentationHandler = NewPresentationHandler(deps)
	s.hub = NewHub(deps, s.log, s.streamBuffer)
	s.unwatch = deps.Watch(s.hub.Publish)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/notification", MetricsMiddleware(s.presentationHandler.HandleNotification, "notification"))
	mux.HandleFunc("/ticker", MetricsMiddleware(s.presentationHandler.HandleTicker, "ticker"))
	mux.HandleFunc("/matches", MetricsMiddleware(s.presentationHandler.HandleMatches, "matches"))
	mux.HandleFunc("/pressure", MetricsMiddleware(s.presentationHandler.HandlePressure, "pressure"))
	mux.HandleFunc("/telemetry", MetricsMiddleware(s.presentationHandler.HandleTelemetry, "telemetry"))
	mux.HandleFunc("/telemetry.png", MetricsMiddleware(s.presentationHandler.HandleTelemetryPNG, "telemetry_png"))
	mux.HandleFunc("/stream", MetricsMiddleware(s.hub.HandleStream, "stream"))
}

// Close stops following state changes and disconnects stream clients.
func (s *Server) Close() {
	if s.unwatch != nil {
		s.unwatch()
	}
	s.hub.Close()
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
