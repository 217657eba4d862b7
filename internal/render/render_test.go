package render_test

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"testing"

	"github.com/okian/livepitch/internal/domain/model"
	"github.com/okian/livepitch/internal/render"
	. "github.com/smartystreets/goconvey/convey"
)

// recordingSurface records draw calls in order.
type recordingSurface struct {
	w, h    int
	clears  int
	circles []render.Circle
	calls   []string
}

func (s *recordingSurface) Size() (int, int) { return s.w, s.h }

func (s *recordingSurface) Clear() {
	s.clears++
	s.circles = nil
	s.calls = append(s.calls, "clear")
}

func (s *recordingSurface) DrawCircle(c render.Circle) {
	s.circles = append(s.circles, c)
	s.calls = append(s.calls, "circle")
}

var pitch = color.RGBA{R: 0x0b, G: 0x3d, B: 0x2e, A: 0xff}

func TestRender(t *testing.T) {
	ctx := context.Background()
	style := render.DefaultStyle()

	Convey("Given a renderer and a recording surface", t, func() {
		r := render.New()
		s := &recordingSurface{w: 600, h: 400}

		Convey("When rendering a ball at (50,50) and one home player at (10,10)", func() {
			frame := &model.TelemetryFrame{
				Ball:    model.Point{X: 50, Y: 50},
				Players: []model.PlayerPosition{{ID: "p1", Side: model.SideHome, X: 10, Y: 10}},
			}
			So(r.Render(ctx, s, frame), ShouldBeNil)

			Convey("Then the surface is cleared and the ball drawn before the player", func() {
				So(s.calls, ShouldResemble, []string{"clear", "circle", "circle"})
				So(s.circles[0].Center, ShouldResemble, model.Point{X: 50, Y: 50})
				So(s.circles[0].Fill, ShouldResemble, style.Ball.Fill)
				So(s.circles[0].GlowBlur, ShouldBeGreaterThan, 0)
				So(s.circles[1].Center, ShouldResemble, model.Point{X: 10, Y: 10})
				So(s.circles[1].Fill, ShouldResemble, style.Home.Fill)
			})
		})

		Convey("When players overlap", func() {
			frame := &model.TelemetryFrame{Players: []model.PlayerPosition{
				{ID: "a", Side: model.SideAway, X: 100, Y: 100},
				{ID: "h", Side: model.SideHome, X: 100, Y: 100},
			}}
			So(r.Render(ctx, s, frame), ShouldBeNil)

			Convey("Then array order is kept and each side has its hue", func() {
				So(len(s.circles), ShouldEqual, 3)
				So(s.circles[1].Fill, ShouldResemble, style.Away.Fill)
				So(s.circles[2].Fill, ShouldResemble, style.Home.Fill)
				So(style.Home.Fill, ShouldNotResemble, style.Away.Fill)
			})
		})

		Convey("When coordinates fall outside the surface", func() {
			frame := &model.TelemetryFrame{Ball: model.Point{X: 900, Y: -20}}
			So(r.Render(ctx, s, frame), ShouldBeNil)

			Convey("Then they are passed through unscaled", func() {
				So(s.circles[0].Center, ShouldResemble, model.Point{X: 900, Y: -20})
			})
		})

		Convey("When there is no frame", func() {
			So(r.Render(ctx, s, nil), ShouldBeNil)

			Convey("Then nothing is drawn", func() {
				So(s.calls, ShouldBeEmpty)
			})
		})

		Convey("When the surface is not ready", func() {
			empty := &recordingSurface{}
			So(r.Render(ctx, empty, &model.TelemetryFrame{}), ShouldBeNil)
			So(empty.calls, ShouldBeEmpty)
		})

		Convey("When the surface is nil", func() {
			So(func() { _ = r.Render(ctx, nil, &model.TelemetryFrame{}) }, ShouldNotPanic)
		})

		Convey("When frames follow each other", func() {
			So(r.Render(ctx, s, &model.TelemetryFrame{Players: []model.PlayerPosition{{Side: model.SideHome}}}), ShouldBeNil)
			So(r.Render(ctx, s, &model.TelemetryFrame{}), ShouldBeNil)

			Convey("Then each one redraws from scratch", func() {
				So(s.clears, ShouldEqual, 2)
				So(len(s.circles), ShouldEqual, 1)
			})
		})
	})
}

func TestImageSurface(t *testing.T) {
	ctx := context.Background()
	style := render.DefaultStyle()

	Convey("Given a 600x400 image surface", t, func() {
		s := render.NewImageSurface(600, 400, pitch)
		w, h := s.Size()
		So(w, ShouldEqual, 600)
		So(h, ShouldEqual, 400)
		So(s.At(300, 200), ShouldResemble, pitch)

		Convey("When a frame is rendered onto it", func() {
			frame := &model.TelemetryFrame{
				Ball: model.Point{X: 50, Y: 50},
				Players: []model.PlayerPosition{
					{ID: "h", Side: model.SideHome, X: 10, Y: 10},
					{ID: "a", Side: model.SideAway, X: 200, Y: 150},
				},
			}
			So(render.New().Render(ctx, s, frame), ShouldBeNil)

			Convey("Then entity centers carry their fill colors", func() {
				So(s.At(50, 50), ShouldResemble, style.Ball.Fill)
				So(s.At(10, 10), ShouldResemble, style.Home.Fill)
				So(s.At(200, 150), ShouldResemble, style.Away.Fill)
			})

			Convey("And far away pixels keep the background", func() {
				So(s.At(500, 350), ShouldResemble, pitch)
			})

			Convey("And the glow tints pixels just outside the ball", func() {
				So(s.At(50+int(style.Ball.Radius)+4, 50), ShouldNotResemble, pitch)
			})

			Convey("And it encodes as PNG", func() {
				var buf bytes.Buffer
				So(s.EncodePNG(&buf), ShouldBeNil)

				img, err := png.Decode(&buf)
				So(err, ShouldBeNil)
				So(img.Bounds().Dx(), ShouldEqual, 600)
			})

			Convey("And clearing restores the background", func() {
				s.Clear()
				So(s.At(50, 50), ShouldResemble, pitch)
			})
		})

		Convey("When a circle is drawn partly off the surface", func() {
			So(func() {
				s.DrawCircle(render.Circle{Center: model.Point{X: -5, Y: 398}, Radius: 20, Fill: style.Home.Fill})
			}, ShouldNotPanic)
			So(s.At(0, 399), ShouldResemble, style.Home.Fill)
		})
	})
}
