// Package canvas holds the persistent drawing surface and the stroke renderer.
//
// Strokes accumulate on a transparent RGBA bitmap that is only ever cleared
// explicitly. Each segment is rendered as an anti-aliased capsule, which gives
// round caps and, across consecutive segments, round joins.
package canvas

import (
	"image"
	"image/color"
	"image/draw"
)

// Mode selects how a stroke combines with the surface.
type Mode int

const (
	// ModePaint composites the stroke color over the surface.
	ModePaint Mode = iota
	// ModeErase removes existing pixels under the stroke (destination-out).
	ModeErase
)

func (m Mode) String() string {
	if m == ModeErase {
		return "erase"
	}
	return "paint"
}

// Stroke holds the render parameters for one segment.
type Stroke struct {
	Width float64
	Mode  Mode
	Color color.NRGBA // ignored when erasing
}

// Point is a position on the surface in pixels.
type Point struct {
	X, Y float64
}

// Surface is the persistent stroke bitmap. It is not safe for concurrent use.
type Surface struct {
	img *image.RGBA
}

// NewSurface creates a fully transparent surface.
func NewSurface(width, height int) *Surface {
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Bounds returns the surface rectangle.
func (s *Surface) Bounds() image.Rectangle {
	return s.img.Bounds()
}

// DrawSegment renders one line segment from a to b with round caps,
// mutating the surface in place. A zero-length segment renders a dot.
func (s *Surface) DrawSegment(a, b Point, st Stroke) {
	if st.Width <= 0 {
		return
	}
	mask, r := capsuleMask(a, b, st.Width/2, s.img.Bounds())
	if mask == nil {
		return
	}

	switch st.Mode {
	case ModeErase:
		s.erase(mask, r)
	default:
		draw.DrawMask(s.img, r, image.NewUniform(st.Color), image.Point{}, mask, r.Min, draw.Over)
	}
}

// erase scales every premultiplied channel by (1 - coverage).
func (s *Surface) erase(mask *image.Alpha, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		mi := mask.PixOffset(r.Min.X, y)
		pi := s.img.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x, mi, pi = x+1, mi+1, pi+4 {
			m := uint32(mask.Pix[mi])
			if m == 0 {
				continue
			}
			keep := 0xff - m
			px := s.img.Pix[pi : pi+4 : pi+4]
			for i := range px {
				px[i] = uint8((uint32(px[i])*keep + 0x7f) / 0xff)
			}
		}
	}
}

// Clear resets every pixel to transparent.
func (s *Surface) Clear() {
	clear(s.img.Pix)
}

// Snapshot returns a copy of the surface bitmap.
func (s *Surface) Snapshot() *image.RGBA {
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}

// Empty reports whether every pixel is transparent.
func (s *Surface) Empty() bool {
	for i := 3; i < len(s.img.Pix); i += 4 {
		if s.img.Pix[i] != 0 {
			return false
		}
	}
	return true
}

// At returns the color at (x, y).
func (s *Surface) At(x, y int) color.RGBA {
	return s.img.RGBAAt(x, y)
}
