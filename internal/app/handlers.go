package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/livepitch/internal/domain/model"
	"github.com/okian/livepitch/internal/domain/pressure"
	"github.com/okian/livepitch/internal/feed"
	"github.com/okian/livepitch/pkg/logger"
	"github.com/okian/livepitch/pkg/metrics"
)

// The handlers below run on the multiplexer's dispatch worker, one at a
// time. They must not take s.mu: Stop holds it while waiting for the worker.

func (s *Service) watchSlot(ctx context.Context, d feed.Descriptor, fn feed.WatchFunc) error {
	if err := s.mux.Subscribe(ctx, d); err != nil {
		return fmt.Errorf("subscribe %s: %w", d.Name, err)
	}
	// Watches end with the slot or with the multiplexer.
	if _, err := s.mux.Watch(d.Name, fn); err != nil {
		return fmt.Errorf("watch %s: %w", d.Name, err)
	}
	return nil
}

func (s *Service) onMatches(snap feed.Snapshot) {
	matches := feed.DecodeMatches(snap)
	entries := make([]model.TickerEntry, len(matches))
	for i, m := range matches {
		entries[i] = m.Ticker()
	}
	s.ticker.SetEntries(entries)

	s.stateMu.Lock()
	s.matches = matches
	focus, explicit := s.focus, s.explicit
	s.stateMu.Unlock()

	s.publish(Update{Kind: UpdateMatches, Data: matches})

	if focus == "" || explicit {
		return
	}
	for _, m := range matches {
		if m.ID == focus {
			s.applyPressure(focus, s.estimator.Estimate(m), true)
			return
		}
	}
}

// onLive follows the first live match unless a focus match is pinned.
func (s *Service) onLive(snap feed.Snapshot) {
	if s.pinned != "" {
		return
	}
	live := feed.DecodeMatches(snap)

	current := s.Focus()
	for _, m := range live {
		if m.ID == current {
			return
		}
	}
	next := ""
	if len(live) > 0 {
		next = live[0].ID
	}
	if next == current {
		return
	}
	if err := s.refocus(context.Background(), next); err != nil {
		s.logger.Warn(context.Background(), "refocus failed", logger.String("match_id", next), logger.Error(err))
	}
}

// refocus rebinds the telemetry and pressure slots to matchID. An empty id
// clears them.
func (s *Service) refocus(ctx context.Context, matchID string) error {
	for _, name := range []string{SlotTelemetry, SlotPressure} {
		if err := s.mux.Unsubscribe(ctx, name); err != nil && !errors.Is(err, feed.ErrUnknownSlot) {
			return err
		}
	}

	s.stateMu.Lock()
	s.focus = matchID
	s.frame = nil
	s.explicit = false
	s.pressure = PressureView{MatchID: matchID, Layout: pressure.Map(0)}
	var focused *model.LiveMatch
	for i := range s.matches {
		if s.matches[i].ID == matchID {
			focused = &s.matches[i]
			break
		}
	}
	s.stateMu.Unlock()
	s.smoother.Reset()
	s.clearCanvas()

	s.logger.Info(ctx, "focus match changed", logger.String("match_id", matchID))
	s.publish(Update{Kind: UpdateTelemetry})
	if focused != nil {
		s.applyPressure(matchID, s.estimator.Estimate(*focused), true)
	} else {
		s.publish(Update{Kind: UpdatePressure, Data: s.Pressure()})
	}
	if matchID == "" {
		return nil
	}

	if err := s.watchSlot(ctx, feed.Telemetry(SlotTelemetry, matchID), s.onTelemetry); err != nil {
		return err
	}
	return s.watchSlot(ctx, feed.Pressure(SlotPressure, matchID), s.onPressure)
}

func (s *Service) onEvent(snap feed.Snapshot) {
	s.scheduler.OnExternalEvent(context.Background(), feed.DecodeLatestEvent(snap))
}

func (s *Service) onTelemetry(snap feed.Snapshot) {
	frame := feed.DecodeTelemetry(snap)
	if frame != nil && frame.MatchID != s.Focus() {
		return
	}

	s.stateMu.Lock()
	s.frame = frame
	s.stateMu.Unlock()

	s.surfaceMu.Lock()
	if frame == nil {
		s.surface.Clear()
	} else if err := s.renderer.Render(context.Background(), s.surface, frame); err != nil {
		s.logger.Warn(context.Background(), "render failed", logger.Error(err))
	}
	s.surfaceMu.Unlock()

	s.publish(Update{Kind: UpdateTelemetry, Data: frame})
}

func (s *Service) onPressure(snap feed.Snapshot) {
	raw, ok := feed.DecodePressure(snap)
	if !ok {
		return
	}
	s.stateMu.Lock()
	focus, wasEstimated := s.focus, !s.explicit
	s.explicit = true
	s.stateMu.Unlock()
	if wasEstimated {
		s.smoother.Reset()
	}
	s.applyPressure(focus, raw, false)
}

func (s *Service) applyPressure(matchID string, raw float64, estimated bool) {
	smoothed := s.smoother.Add(raw)
	view := PressureView{
		MatchID:   matchID,
		Available: true,
		Estimated: estimated,
		Raw:       pressure.Clamp(raw),
		Smoothed:  smoothed,
		Layout:    pressure.Map(smoothed),
	}
	metrics.UpdatePressure(view.Raw, smoothed)

	s.stateMu.Lock()
	s.pressure = view
	s.stateMu.Unlock()

	s.publish(Update{Kind: UpdatePressure, Data: view})
}

func (s *Service) clearCanvas() {
	s.surfaceMu.Lock()
	defer s.surfaceMu.Unlock()
	s.surface.Clear()
}
