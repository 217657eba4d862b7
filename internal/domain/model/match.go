// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Status is a match lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusLive      Status = "live"
	StatusCompleted Status = "completed"
)

// ParseStatus normalizes upstream spellings. Unknown values map to
// StatusScheduled so that a match never renders a score it does not have.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "live", "in_progress", "inprogress", "playing":
		return StatusLive
	case "completed", "finished", "final", "ft":
		return StatusCompleted
	default:
		return StatusScheduled
	}
}

// Pair holds a home/away value.
type Pair struct {
	Home float64 `json:"home" mapstructure:"home"`
	Away float64 `json:"away" mapstructure:"away"`
}

// Score is the goal count of both sides.
type Score struct {
	Home int `json:"home" mapstructure:"home"`
	Away int `json:"away" mapstructure:"away"`
}

// Stats aggregates per-side match metrics.
type Stats struct {
	Possession   Pair `json:"possession" mapstructure:"possession"`
	Shots        Pair `json:"shots" mapstructure:"shots"`
	Attacks      Pair `json:"attacks" mapstructure:"attacks"`
	PassAccuracy Pair `json:"passAccuracy" mapstructure:"passAccuracy"`
}

// EventType is the kind of a timeline event.
type EventType string

const (
	EventGoal         EventType = "goal"
	EventCard         EventType = "card"
	EventSubstitution EventType = "substitution"
	EventText         EventType = "text"
)

// MatchEvent is one entry of a match timeline. Consumers treat timelines as
// append-only.
type MatchEvent struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"matchId,omitempty"`
	Minute    int       `json:"minute"`
	Type      EventType `json:"type"`
	TeamID    string    `json:"teamId,omitempty"`
	PlayerID  string    `json:"playerId,omitempty"`
	Message   string    `json:"message"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Age returns how long ago the event was created relative to now.
func (e MatchEvent) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// LiveMatch is the materialized state of one match. Values are replaced
// wholesale on every upstream update and never mutated after hand-off.
type LiveMatch struct {
	ID       string       `json:"id"`
	HomeTeam string       `json:"homeTeam"`
	AwayTeam string       `json:"awayTeam"`
	Status   Status       `json:"status"`
	Minute   int          `json:"minute,omitempty"`
	Score    *Score       `json:"score,omitempty"`
	Events   []MatchEvent `json:"events,omitempty"`
	Stats    Stats        `json:"stats"`
}

// Ticker builds the ticker summary of the match.
func (m LiveMatch) Ticker() TickerEntry {
	return TickerEntry{
		MatchID:  m.ID,
		HomeTeam: m.HomeTeam,
		AwayTeam: m.AwayTeam,
		Status:   m.Status,
		Score:    m.Score,
		Minute:   m.Minute,
	}
}
