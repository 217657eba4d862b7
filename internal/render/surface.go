package render

import (
	"image/color"

	"github.com/okian/livepitch/internal/domain/model"
)

// Circle is a filled circle with an optional glow and stroke outline.
type Circle struct {
	Center      model.Point
	Radius      float64
	Fill        color.RGBA
	Glow        color.RGBA
	GlowBlur    float64
	Stroke      color.RGBA
	StrokeWidth float64
}

// Surface is a fixed-size drawing target.
type Surface interface {
	// Size returns the surface dimensions. A zero size means the surface is
	// not ready.
	Size() (width, height int)
	Clear()
	DrawCircle(c Circle)
}

// EntityStyle is the look of one kind of entity.
type EntityStyle struct {
	Radius      float64
	Fill        color.RGBA
	Glow        color.RGBA
	GlowBlur    float64
	Stroke      color.RGBA
	StrokeWidth float64
}

func (s EntityStyle) circle(at model.Point) Circle {
	return Circle{
		Center:      at,
		Radius:      s.Radius,
		Fill:        s.Fill,
		Glow:        s.Glow,
		GlowBlur:    s.GlowBlur,
		Stroke:      s.Stroke,
		StrokeWidth: s.StrokeWidth,
	}
}

// Style holds the ball style and the fixed hue of each side.
type Style struct {
	Ball EntityStyle
	Home EntityStyle
	Away EntityStyle
}

// DefaultStyle returns the built-in palette.
func DefaultStyle() Style {
	white := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	light := color.RGBA{R: 0xf8, G: 0xfa, B: 0xfc, A: 0xff}
	home := color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}
	away := color.RGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff}

	return Style{
		Ball: EntityStyle{
			Radius:      6,
			Fill:        white,
			Glow:        white,
			GlowBlur:    10,
			Stroke:      color.RGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xff},
			StrokeWidth: 1.5,
		},
		Home: EntityStyle{Radius: 8, Fill: home, Glow: home, GlowBlur: 8, Stroke: light, StrokeWidth: 1.5},
		Away: EntityStyle{Radius: 8, Fill: away, Glow: away, GlowBlur: 8, Stroke: light, StrokeWidth: 1.5},
	}
}

// forSide returns the style of a player. Anything that is not home is drawn
// in the away hue.
func (s Style) forSide(side model.Side) EntityStyle {
	if side == model.SideHome {
		return s.Home
	}
	return s.Away
}
