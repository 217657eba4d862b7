package notify

import "github.com/okian/livepitch/internal/domain/model"

// Template is a fixed synthetic notification.
type Template struct {
	Category model.Category
	Message  string
	Color    string
}

// DefaultCatalog returns the built-in synthetic templates.
func DefaultCatalog() []Template {
	return []Template{
		{Category: model.CategoryGoal, Message: "GOAL! What a finish into the top corner!", Color: "#22c55e"},
		{Category: model.CategoryGoal, Message: "GOAL! Header from the corner kick!", Color: "#22c55e"},
		{Category: model.CategoryUpdate, Message: "Big chance! The keeper makes a diving save.", Color: "#3b82f6"},
		{Category: model.CategoryUpdate, Message: "Substitution: fresh legs coming on.", Color: "#3b82f6"},
		{Category: model.CategoryCard, Message: "Yellow card for a late challenge.", Color: "#eab308"},
		{Category: model.CategoryCard, Message: "Red card! Down to ten men.", Color: "#ef4444"},
	}
}

// fromEvent builds the display fields of an external event.
func fromEvent(ev model.MatchEvent) (model.Category, string) {
	category := model.CategoryUpdate
	switch {
	case ev.Category != "":
		category = model.ParseCategory(ev.Category)
	case ev.Type == model.EventGoal:
		category = model.CategoryGoal
	case ev.Type == model.EventCard:
		category = model.CategoryCard
	}

	msg := ev.Message
	if msg == "" {
		switch category {
		case model.CategoryGoal:
			msg = "GOAL!"
		case model.CategoryCard:
			msg = "Card shown"
		case model.CategoryWin:
			msg = "Full time"
		default:
			msg = "Match update"
		}
	}
	return category, msg
}
