// Package export serializes the stroke surface to image files.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/nfnt/resize"
)

// Format is an export file format.
type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// ErrUnknownFormat is returned for formats other than png and pdf.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat parses a format name. The empty string selects PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	return string(f)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "image/png"
}

// Filename builds "<prefix>-<unix-ms>.<ext>".
func Filename(prefix string, f Format, t time.Time) string {
	return fmt.Sprintf("%s-%d.%s", prefix, t.UnixMilli(), f.Ext())
}

// ThumbnailName returns the file name of the thumbnail stored next to filename.
func ThumbnailName(filename string) string {
	base := strings.TrimSuffix(filename, "."+extOf(filename))
	return base + ".thumb.png"
}

func extOf(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		return filename[i+1:]
	}
	return ""
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case FormatPNG:
		return EncodePNG(w, img)
	case FormatPDF:
		return EncodePDF(w, img)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// EncodePNG writes img as a PNG, keeping the alpha channel.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// EncodePDF writes a single-page PDF whose page is the image size in points,
// with the image placed at full size.
func EncodePDF(w io.Writer, img image.Image) error {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return err
	}

	b := img.Bounds()
	width, height := float64(b.Dx()), float64(b.Dy())

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("canvas", opts, &buf)
	pdf.ImageOptions("canvas", 0, 0, width, height, false, opts, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("encode pdf: %w", err)
	}
	return nil
}

// Thumbnail scales img to fit within maxSize x maxSize, preserving aspect ratio.
func Thumbnail(img image.Image, maxSize uint) image.Image {
	return resize.Thumbnail(maxSize, maxSize, img, resize.Lanczos3)
}
