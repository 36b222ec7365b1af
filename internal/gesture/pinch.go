// Package gesture turns hand landmarks into pen-down/pen-up drawing input.
//
// A pinch (thumb tip and index fingertip closer than a pixel threshold) is the
// pen-down signal; the index fingertip is the pen position.
package gesture

import (
	"math"

	"github.com/VicFreyre/handraw-pipe/internal/landmark"
)

// DefaultPinchThreshold is the fingertip distance, in canvas pixels, below
// which the hand counts as pinching.
const DefaultPinchThreshold = 40.0

// Point is a position in canvas pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is the pixel size of the canvas landmarks are scaled to.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Reading is the interpretation of one hand in one frame.
type Reading struct {
	Index    Point   // index fingertip, clamped to the canvas
	Thumb    Point   // thumb tip, clamped to the canvas
	Distance float64 // unclamped fingertip distance in pixels
	Pinching bool
}

// Interpret scales the thumb and index fingertips of hand to pixel space and
// compares their distance with threshold. The comparison is strict: a
// distance equal to the threshold is not a pinch.
func Interpret(hand *landmark.Hand, size Size, threshold float64) Reading {
	index := scale(hand.Points[landmark.IndexTip], size)
	thumb := scale(hand.Points[landmark.ThumbTip], size)

	distance := math.Hypot(thumb.X-index.X, thumb.Y-index.Y)

	return Reading{
		Index:    clamp(index, size),
		Thumb:    clamp(thumb, size),
		Distance: distance,
		Pinching: distance < threshold,
	}
}

// scale maps a normalized landmark to pixels, each axis independently.
func scale(p landmark.Point3D, size Size) Point {
	return Point{
		X: p.X * float64(size.Width),
		Y: p.Y * float64(size.Height),
	}
}

// clamp keeps detector noise from placing the pen far off the surface.
func clamp(p Point, size Size) Point {
	return Point{
		X: math.Min(math.Max(p.X, 0), float64(size.Width)),
		Y: math.Min(math.Max(p.Y, 0), float64(size.Height)),
	}
}
