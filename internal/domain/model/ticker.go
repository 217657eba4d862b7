package model

// TickerEntry is the read-only summary rotated by the ticker.
type TickerEntry struct {
	MatchID  string `json:"matchId"`
	HomeTeam string `json:"homeTeam"`
	AwayTeam string `json:"awayTeam"`
	Status   Status `json:"status"`
	Score    *Score `json:"score,omitempty"`
	Minute   int    `json:"minute,omitempty"`
}
