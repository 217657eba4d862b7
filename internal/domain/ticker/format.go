package ticker

import (
	"fmt"

	"github.com/okian/livepitch/internal/domain/model"
)

// View is a ticker entry formatted for display.
type View struct {
	MatchID  string       `json:"matchId"`
	HomeTeam string       `json:"homeTeam"`
	AwayTeam string       `json:"awayTeam"`
	Status   model.Status `json:"status"`
	// Label is "Home vs Away" before kick-off and the score pair otherwise.
	Label  string `json:"label"`
	Minute string `json:"minute,omitempty"`
	// Live drives the pulsing live affordance.
	Live  bool `json:"live"`
	Index int  `json:"index"`
	Count int  `json:"count"`
}

// Format builds the display form of e.
func Format(e model.TickerEntry) View {
	v := View{
		MatchID:  e.MatchID,
		HomeTeam: e.HomeTeam,
		AwayTeam: e.AwayTeam,
		Status:   e.Status,
	}
	if e.Status == model.StatusScheduled || e.Status == "" {
		v.Label = fmt.Sprintf("%s vs %s", e.HomeTeam, e.AwayTeam)
		return v
	}

	var home, away int
	if e.Score != nil {
		home, away = e.Score.Home, e.Score.Away
	}
	v.Label = fmt.Sprintf("%d - %d", home, away)
	if e.Status == model.StatusLive {
		v.Live = true
		v.Minute = fmt.Sprintf("%d'", e.Minute)
	}
	return v
}
