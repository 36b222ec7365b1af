package canvas

import (
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// arcSteps is the number of chords per half circle.
const arcSteps = 16

// capsuleMask rasterizes the set of points within radius of segment ab. The
// mask shares the surface coordinate space; the returned rectangle is the
// part of it inside clip. The mask is nil when nothing is visible.
func capsuleMask(a, b Point, radius float64, clip image.Rectangle) (*image.Alpha, image.Rectangle) {
	full := image.Rect(
		int(math.Floor(math.Min(a.X, b.X)-radius))-1,
		int(math.Floor(math.Min(a.Y, b.Y)-radius))-1,
		int(math.Ceil(math.Max(a.X, b.X)+radius))+1,
		int(math.Ceil(math.Max(a.Y, b.Y)+radius))+1,
	)
	r := full.Intersect(clip)
	if r.Empty() {
		return nil, r
	}

	// The whole capsule is rasterized; clipping happens when the mask is applied.
	z := vector.NewRasterizer(full.Dx(), full.Dy())
	z.DrawOp = draw.Src

	ox, oy := float64(full.Min.X), float64(full.Min.Y)
	pt := func(c Point, angle float64) (float32, float32) {
		return float32(c.X + radius*math.Cos(angle) - ox), float32(c.Y + radius*math.Sin(angle) - oy)
	}

	dx, dy := b.X-a.X, b.Y-a.Y
	if math.Hypot(dx, dy) < 1e-9 {
		z.MoveTo(pt(a, 0))
		for k := 1; k < 2*arcSteps; k++ {
			z.LineTo(pt(a, math.Pi*float64(k)/arcSteps))
		}
		z.ClosePath()
	} else {
		theta := math.Atan2(dy, dx)
		// Half circle around b facing forward, then around a facing back.
		z.MoveTo(pt(b, theta-math.Pi/2))
		for k := 1; k <= arcSteps; k++ {
			z.LineTo(pt(b, theta-math.Pi/2+math.Pi*float64(k)/arcSteps))
		}
		for k := 0; k <= arcSteps; k++ {
			z.LineTo(pt(a, theta+math.Pi/2+math.Pi*float64(k)/arcSteps))
		}
		z.ClosePath()
	}

	mask := image.NewAlpha(full)
	z.Draw(mask, full, image.Opaque, image.Point{})
	return mask, r
}
