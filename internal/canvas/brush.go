package canvas

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Brush size limits in pixels.
const (
	MinBrushSize = 1
	MaxBrushSize = 20

	DefaultBrushSize  = 5
	DefaultBrushColor = "#8B5CF6"

	// DefaultEraserScale multiplies the brush size to get the eraser width.
	DefaultEraserScale = 2.0
)

var (
	ErrInvalidColor = errors.New("color is not in the palette")
	ErrInvalidSize  = errors.New("brush size out of range")
)

// Palette is the fixed set of selectable brush colors.
var Palette = []string{
	"#8B5CF6",
	"#EC4899",
	"#EF4444",
	"#F97316",
	"#EAB308",
	"#22C55E",
	"#06B6D4",
	"#3B82F6",
	"#6366F1",
	"#A855F7",
	"#FFFFFF",
	"#000000",
}

// InPalette reports whether hex names one of the palette swatches.
// The comparison ignores case.
func InPalette(hex string) bool {
	for _, c := range Palette {
		if strings.EqualFold(c, hex) {
			return true
		}
	}
	return false
}

// ParseHex parses a #RRGGBB string into an opaque color.
func ParseHex(hex string) (color.NRGBA, error) {
	s, ok := strings.CutPrefix(hex, "#")
	if !ok || len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("parse color %q: want #RRGGBB", hex)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("parse color %q: %w", hex, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// Brush is the user's tool selection. It is read fresh for every segment.
type Brush struct {
	Color  string `json:"color"`
	Size   int    `json:"size"`
	Eraser bool   `json:"eraser"`
}

// DefaultBrush returns the initial brush: violet, size 5, paint mode.
func DefaultBrush() Brush {
	return Brush{Color: DefaultBrushColor, Size: DefaultBrushSize}
}

// Validate checks the color against the palette and the size against its limits.
func (b Brush) Validate() error {
	if !InPalette(b.Color) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, b.Color)
	}
	if b.Size < MinBrushSize || b.Size > MaxBrushSize {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidSize, b.Size, MinBrushSize, MaxBrushSize)
	}
	return nil
}

// BrushUpdate is a partial brush change; nil fields are left untouched.
type BrushUpdate struct {
	Color  *string `json:"color,omitempty"`
	Size   *int    `json:"size,omitempty"`
	Eraser *bool   `json:"eraser,omitempty"`
}

// Apply returns b with the update applied. The result is validated and the
// color is normalized to upper case.
func (b Brush) Apply(u BrushUpdate) (Brush, error) {
	if u.Color != nil {
		b.Color = strings.ToUpper(*u.Color)
	}
	if u.Size != nil {
		b.Size = *u.Size
	}
	if u.Eraser != nil {
		b.Eraser = *u.Eraser
	}
	if err := b.Validate(); err != nil {
		return Brush{}, err
	}
	return b, nil
}

// Stroke resolves the brush into render parameters. The eraser draws
// eraserScale times wider than the brush size; a non-positive scale selects
// DefaultEraserScale.
func (b Brush) Stroke(eraserScale float64) (Stroke, error) {
	if eraserScale <= 0 {
		eraserScale = DefaultEraserScale
	}
	if b.Eraser {
		return Stroke{Width: float64(b.Size) * eraserScale, Mode: ModeErase}, nil
	}
	c, err := ParseHex(b.Color)
	if err != nil {
		return Stroke{}, err
	}
	return Stroke{Width: float64(b.Size), Mode: ModePaint, Color: c}, nil
}
