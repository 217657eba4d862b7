// Package types contains presentation types shared by the API and renderers.
package types

import (
	"time"

	"github.com/okian/livepitch/internal/domain/model"
	"github.com/okian/livepitch/internal/domain/pressure"
)

// Badge is the presentation metadata of a notification category.
type Badge struct {
	Icon  string `json:"icon"`
	Color string `json:"color"`
	Label string `json:"label"`
}

var badges = map[model.Category]Badge{
	model.CategoryGoal:   {Icon: "goal", Color: "#22c55e", Label: "Goal"},
	model.CategoryCard:   {Icon: "card", Color: "#eab308", Label: "Card"},
	model.CategoryWin:    {Icon: "trophy", Color: "#a855f7", Label: "Full time"},
	model.CategoryUpdate: {Icon: "info", Color: "#3b82f6", Label: "Update"},
}

// BadgeFor resolves a category to its badge. Unknown categories resolve to
// the update badge.
func BadgeFor(c model.Category) Badge {
	if b, ok := badges[c]; ok {
		return b
	}
	return badges[model.CategoryUpdate]
}

// NotificationView is a notification ready for display.
type NotificationView struct {
	ID        string         `json:"id"`
	Category  model.Category `json:"category"`
	Message   string         `json:"message"`
	Source    model.Source   `json:"source"`
	Badge     Badge          `json:"badge"`
	ShownAt   time.Time      `json:"shownAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// NewNotificationView resolves n's badge. A color carried by the
// notification overrides the category default.
func NewNotificationView(n model.Notification) NotificationView {
	b := BadgeFor(n.Category)
	if n.Color != "" {
		b.Color = n.Color
	}
	return NotificationView{
		ID:        n.ID,
		Category:  n.Category,
		Message:   n.Message,
		Source:    n.Source,
		Badge:     b,
		ShownAt:   n.ShownAt,
		ExpiresAt: n.ExpiresAt,
	}
}

// NotificationDismissal reports that the notification with the given id left
// the screen. Clients showing a different notification ignore it.
type NotificationDismissal struct {
	Dismissed string `json:"dismissed"`
}

// PressureView is the momentum indicator of the focus match.
type PressureView struct {
	MatchID   string          `json:"matchId,omitempty"`
	Available bool            `json:"available"`
	Estimated bool            `json:"estimated"`
	Raw       float64         `json:"raw"`
	Smoothed  float64         `json:"smoothed"`
	Layout    pressure.Layout `json:"layout"`
}

// Update is one state change of the presentation. A nil Data means the
// state of that kind was cleared.
type Update struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}
