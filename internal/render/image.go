package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"sync"

	"golang.org/x/image/vector"
)

// glowSteps is the number of concentric layers approximating a blur.
const glowSteps = 4

// kappa places cubic control points for a quarter circle.
const kappa = 0.5522847498

// ImageSurface rasterizes circles onto an in-memory RGBA image.
type ImageSurface struct {
	mu         sync.Mutex
	img        *image.RGBA
	background color.RGBA
}

// NewImageSurface creates a w×h surface filled with background.
func NewImageSurface(w, h int, background color.RGBA) *ImageSurface {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	s := &ImageSurface{img: image.NewRGBA(image.Rect(0, 0, w, h)), background: background}
	s.Clear()
	return s
}

// Size returns the image dimensions.
func (s *ImageSurface) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Clear paints the whole image with the background color.
func (s *ImageSurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(s.background), image.Point{}, draw.Src)
}

// DrawCircle draws the glow, then the fill, then the stroke.
func (s *ImageSurface) DrawCircle(c Circle) {
	if c.Radius <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.GlowBlur > 0 && c.Glow.A > 0 {
		for i := glowSteps; i >= 1; i-- {
			r := c.Radius + c.GlowBlur*float64(i)/glowSteps
			a := uint8(int(c.Glow.A) * (glowSteps + 1 - i) / (2 * (glowSteps + 1)))
			s.fillRing(c.Center.X, c.Center.Y, r, 0, withAlpha(c.Glow, a))
		}
	}
	s.fillRing(c.Center.X, c.Center.Y, c.Radius, 0, c.Fill)
	if c.StrokeWidth > 0 && c.Stroke.A > 0 {
		half := c.StrokeWidth / 2
		s.fillRing(c.Center.X, c.Center.Y, c.Radius+half, c.Radius-half, c.Stroke)
	}
}

// At returns the color of one pixel.
func (s *ImageSurface) At(x, y int) color.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img.RGBAAt(x, y)
}

// Snapshot returns a copy of the current image.
func (s *ImageSurface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}

// EncodePNG writes the current image as PNG.
func (s *ImageSurface) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, s.Snapshot()); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// fillRing fills the area between radii inner and outer. inner <= 0 fills a
// disk. The inner circle is traced in the opposite direction so its winding
// cancels the outer one.
func (s *ImageSurface) fillRing(cx, cy, outer, inner float64, col color.RGBA) {
	w, h := s.img.Bounds().Dx(), s.img.Bounds().Dy()
	if w == 0 || h == 0 || outer <= 0 {
		return
	}
	z := vector.NewRasterizer(w, h)
	z.DrawOp = draw.Over
	traceCircle(z, float32(cx), float32(cy), float32(outer), false)
	if inner > 0 {
		traceCircle(z, float32(cx), float32(cy), float32(inner), true)
	}
	z.Draw(s.img, s.img.Bounds(), image.NewUniform(col), image.Point{})
}

func traceCircle(z *vector.Rasterizer, cx, cy, r float32, reverse bool) {
	k := float32(kappa) * r
	z.MoveTo(cx+r, cy)
	if !reverse {
		z.CubeTo(cx+r, cy+k, cx+k, cy+r, cx, cy+r)
		z.CubeTo(cx-k, cy+r, cx-r, cy+k, cx-r, cy)
		z.CubeTo(cx-r, cy-k, cx-k, cy-r, cx, cy-r)
		z.CubeTo(cx+k, cy-r, cx+r, cy-k, cx+r, cy)
	} else {
		z.CubeTo(cx+r, cy-k, cx+k, cy-r, cx, cy-r)
		z.CubeTo(cx-k, cy-r, cx-r, cy-k, cx-r, cy)
		z.CubeTo(cx-r, cy+k, cx-k, cy+r, cx, cy+r)
		z.CubeTo(cx+k, cy+r, cx+r, cy+k, cx+r, cy)
	}
	z.ClosePath()
}

// withAlpha converts an opaque color to a premultiplied color with alpha a.
func withAlpha(c color.RGBA, a uint8) color.RGBA {
	return color.RGBAModel.Convert(color.NRGBA{R: c.R, G: c.G, B: c.B, A: a}).(color.RGBA)
}
