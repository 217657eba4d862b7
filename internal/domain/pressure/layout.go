// Package pressure maps the signed pressure metric onto the momentum
// indicator: two non-overlapping bar extents and a marker position.
package pressure

import (
	"math"

	"github.com/okian/livepitch/internal/domain/model"
)

// Layout is the geometry of the momentum indicator. All values are
// percentages of a fixed-width track.
type Layout struct {
	HomeExtent float64 `json:"homeExtent"`
	AwayExtent float64 `json:"awayExtent"`
	Indicator  float64 `json:"indicator"`
}

// Map turns a pressure value into a Layout. It is pure: the same input always
// yields the same Layout. Values outside [-100, 100] are clamped and NaN is
// treated as balanced.
func Map(p float64) Layout {
	p = Clamp(p)
	return Layout{
		HomeExtent: math.Max(0, p),
		AwayExtent: math.Max(0, -p),
		Indicator:  50 + p/2,
	}
}

// Clamp bounds p to the pressure domain.
func Clamp(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(model.PressureMin, math.Min(model.PressureMax, p))
}

// Balanced reports whether the layout shows neither side ahead.
func (l Layout) Balanced() bool {
	return l.HomeExtent == 0 && l.AwayExtent == 0
}
