// Package overlay renders the preview frame: camera or whiteboard background,
// the stroke layer, the hand skeleton, mirrored for display.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"gocv.io/x/gocv"
	xdraw "golang.org/x/image/draw"

	"github.com/VicFreyre/handraw-pipe/internal/landmark"
)

// Skeleton colors and sizes.
var (
	ConnectorColor = color.RGBA{G: 0xff, A: 0xff}
	LandmarkColor  = color.RGBA{R: 0xff, A: 0xff}
	PenColor       = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

const (
	connectorThickness = 2
	landmarkRadius     = 3
	penRadius          = 8

	// DefaultQuality is the JPEG quality of preview frames.
	DefaultQuality = 80
)

// Options controls RenderJPEG.
type Options struct {
	Hands    []landmark.Hand
	Surface  image.Image // stroke layer; nil draws no strokes
	Board    bool        // white background instead of the camera image
	Pinching bool        // ring the index fingertip of the first hand
	Mirror   bool
	Quality  int
}

// DrawHands draws connectors and landmark dots for every hand onto frame.
// Landmarks are normalized and scaled to the frame size.
func DrawHands(frame *gocv.Mat, hands []landmark.Hand) {
	w, h := frame.Cols(), frame.Rows()
	for i := range hands {
		pts := toPixels(&hands[i], w, h)
		for _, c := range landmark.Connections {
			gocv.Line(frame, pts[c[0]], pts[c[1]], ConnectorColor, connectorThickness)
		}
		for _, p := range pts {
			gocv.Circle(frame, p, landmarkRadius, LandmarkColor, -1)
		}
	}
}

// DrawPen rings the index fingertip of hand.
func DrawPen(frame *gocv.Mat, hand *landmark.Hand) {
	pts := toPixels(hand, frame.Cols(), frame.Rows())
	gocv.Circle(frame, pts[landmark.IndexTip], penRadius, PenColor, 2)
}

func toPixels(hand *landmark.Hand, w, h int) [landmark.NumLandmarks]image.Point {
	var pts [landmark.NumLandmarks]image.Point
	for i, p := range hand.Points {
		pts[i] = image.Pt(int(p.X*float64(w)), int(p.Y*float64(h)))
	}
	return pts
}

// Compose returns a new frame with the background replaced by white when
// board is set and surface alpha-composited on top. The stroke layer is
// scaled when its size differs from the frame. The caller closes the result.
func Compose(frame gocv.Mat, surface image.Image, board bool) (gocv.Mat, error) {
	img, err := frame.ToImage()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("convert frame: %w", err)
	}

	b := img.Bounds()
	canvas := image.NewRGBA(b)
	if board {
		draw.Draw(canvas, b, image.White, image.Point{}, draw.Src)
	} else {
		draw.Draw(canvas, b, img, b.Min, draw.Src)
	}

	if surface != nil {
		sb := surface.Bounds()
		if sb.Size() == b.Size() {
			draw.Draw(canvas, b, surface, sb.Min, draw.Over)
		} else {
			xdraw.BiLinear.Scale(canvas, b, surface, sb, xdraw.Over, nil)
		}
	}

	return gocv.ImageToMatRGB(canvas)
}

// RenderJPEG builds one preview frame from the raw camera frame and encodes
// it as JPEG. Landmark math never sees the mirrored image; mirroring happens
// here, after every overlay is drawn.
func RenderJPEG(frame gocv.Mat, opts Options) ([]byte, error) {
	out, err := Compose(frame, opts.Surface, opts.Board)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	DrawHands(&out, opts.Hands)
	if opts.Pinching && len(opts.Hands) > 0 {
		DrawPen(&out, &opts.Hands[0])
	}

	if opts.Mirror {
		gocv.Flip(out, &out, 1)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, out, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}
