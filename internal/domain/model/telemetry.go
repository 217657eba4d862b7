package model

// Side identifies the team a player belongs to.
type Side string

const (
	SideHome Side = "home"
	SideAway Side = "away"
)

// Point is a position in surface coordinates.
type Point struct {
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
}

// PlayerPosition is one player in a telemetry frame.
type PlayerPosition struct {
	ID   string  `json:"id" mapstructure:"id"`
	Side Side    `json:"side" mapstructure:"side"`
	X    float64 `json:"x" mapstructure:"x"`
	Y    float64 `json:"y" mapstructure:"y"`
}

// TelemetryFrame is an ephemeral picture of the pitch. Each frame fully
// replaces the previous one.
type TelemetryFrame struct {
	MatchID string           `json:"matchId,omitempty" mapstructure:"matchId"`
	Ball    Point            `json:"ball" mapstructure:"ball"`
	Players []PlayerPosition `json:"players" mapstructure:"players"`
}

// Pressure bounds.
const (
	PressureMin = -100.0
	PressureMax = 100.0
)
