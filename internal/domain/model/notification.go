package model

import (
	"strings"
	"time"
)

// Category is the closed set of notification kinds. Presentation metadata
// (icon, default color) is resolved by lookup in the rendering layer.
type Category string

const (
	CategoryGoal   Category = "goal"
	CategoryCard   Category = "card"
	CategoryWin    Category = "win"
	CategoryUpdate Category = "update"
)

// ParseCategory maps upstream category/type strings onto Category.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "goal":
		return CategoryGoal
	case "card", "yellow", "red", "yellow_card", "red_card":
		return CategoryCard
	case "win", "victory", "result":
		return CategoryWin
	default:
		return CategoryUpdate
	}
}

// Source tells where a notification came from.
type Source string

const (
	SourceExternal  Source = "external"
	SourceSynthetic Source = "synthetic"
)

// Notification is the single on-screen notification.
type Notification struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Message   string    `json:"message"`
	Color     string    `json:"color,omitempty"`
	Source    Source    `json:"source"`
	EventID   string    `json:"eventId,omitempty"`
	ShownAt   time.Time `json:"shownAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
