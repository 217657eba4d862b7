package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/livepitch/internal/domain/model"
	"github.com/okian/livepitch/internal/domain/ticker"
	"github.com/okian/livepitch/internal/domain/types"
)

// PresentationHandler serves the current presentation state.
type PresentationHandler struct {
	deps Dependencies
}

// NewPresentationHandler creates a new presentation handler.
func NewPresentationHandler(deps Dependencies) *PresentationHandler {
	return &PresentationHandler{deps: deps}
}

type notificationResponse struct {
	Visible      bool                    `json:"visible"`
	Notification *types.NotificationView `json:"notification,omitempty"`
}

type tickerResponse struct {
	Available bool         `json:"available"`
	Entry     *ticker.View `json:"entry,omitempty"`
}

// HandleNotification handles GET /notification requests.
func (h *PresentationHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	resp := notificationResponse{}
	if n, ok := h.deps.Notification(); ok {
		resp.Visible = true
		resp.Notification = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleTicker handles GET /ticker requests.
func (h *PresentationHandler) HandleTicker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	resp := tickerResponse{}
	if v, ok := h.deps.Ticker(); ok {
		resp.Available = true
		resp.Entry = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleMatches handles GET /matches requests. An optional status query
// parameter filters by lifecycle state.
func (h *PresentationHandler) HandleMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	matches := h.deps.Matches()
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := model.Status(strings.ToLower(raw))
		switch status {
		case model.StatusScheduled, model.StatusLive, model.StatusCompleted:
		default:
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: unknown status %q", ErrBadRequest, raw))
			return
		}
		filtered := make([]model.LiveMatch, 0, len(matches))
		for _, m := range matches {
			if m.Status == status {
				filtered = append(filtered, m)
			}
		}
		matches = filtered
	}
	if matches == nil {
		matches = []model.LiveMatch{}
	}
	writeJSON(w, http.StatusOK, matches)
}

// HandlePressure handles GET /pressure requests.
func (h *PresentationHandler) HandlePressure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Pressure())
}

// HandleTelemetry handles GET /telemetry requests.
func (h *PresentationHandler) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	frame := h.deps.Telemetry()
	if frame == nil {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("telemetry: %w", ErrNotAvailable))
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// HandleTelemetryPNG handles GET /telemetry.png requests.
func (h *PresentationHandler) HandleTelemetryPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	var buf bytes.Buffer
	if err := h.deps.RenderPNG(&buf); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
