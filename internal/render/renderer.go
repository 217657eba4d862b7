// Package render draws telemetry frames onto a drawing surface.
package render

import (
	"context"
	"time"

	"github.com/okian/livepitch/internal/domain/model"
	"github.com/okian/livepitch/pkg/logger"
	"github.com/okian/livepitch/pkg/metrics"
)

// Option applies a configuration option to the Renderer.
type Option func(*Renderer)

// WithStyle sets the palette.
func WithStyle(s Style) Option {
	return func(r *Renderer) { r.style = s }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// Renderer redraws a surface from scratch for every frame.
type Renderer struct {
	style Style
	log   logger.Logger
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{style: DefaultStyle(), log: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render clears s and draws the ball followed by every player in frame
// order. Coordinates are used as given. A nil frame or an unavailable
// surface draws nothing and is not an error.
func (r *Renderer) Render(ctx context.Context, s Surface, frame *model.TelemetryFrame) error {
	if s == nil {
		r.skip(ctx, "no_surface", ErrSurfaceUnavailable)
		return nil
	}
	if w, h := s.Size(); w <= 0 || h <= 0 {
		r.skip(ctx, "no_surface", ErrSurfaceUnavailable)
		return nil
	}
	if frame == nil {
		r.skip(ctx, "no_frame", nil)
		return nil
	}

	start := time.Now()
	s.Clear()
	s.DrawCircle(r.style.Ball.circle(frame.Ball))
	for _, p := range frame.Players {
		s.DrawCircle(r.style.forSide(p.Side).circle(model.Point{X: p.X, Y: p.Y}))
	}

	metrics.RecordFrameRendered()
	metrics.RecordRenderLatency(float64(time.Since(start).Microseconds()) / 1000)
	return nil
}

func (r *Renderer) skip(ctx context.Context, reason string, err error) {
	metrics.RecordRenderSkipped(reason)
	fields := []logger.Field{logger.String("reason", reason)}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	r.log.Debug(ctx, "render skipped", fields...)
}
