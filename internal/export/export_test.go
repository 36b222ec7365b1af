package export

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatPNG},
		{in: "png", want: FormatPNG},
		{in: " PDF ", want: FormatPDF},
		{in: "jpeg", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFormat) {
					t.Errorf("ParseFormat() error = %v, want ErrUnknownFormat", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat() = %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	ts := time.UnixMilli(1712345678901)

	if got := Filename("handraw", FormatPNG, ts); got != "handraw-1712345678901.png" {
		t.Errorf("Filename() = %q", got)
	}
	if got := Filename("desenho", FormatPDF, ts); got != "desenho-1712345678901.pdf" {
		t.Errorf("Filename() = %q", got)
	}
	if got := ThumbnailName("handraw-1712345678901.pdf"); got != "handraw-1712345678901.thumb.png" {
		t.Errorf("ThumbnailName() = %q", got)
	}
}

func TestEncodePNG_EmptySurface(t *testing.T) {
	blank := image.NewRGBA(image.Rect(0, 0, 1280, 720))

	var buf bytes.Buffer
	if err := EncodePNG(&buf, blank); err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}

	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() != 1280 || b.Dy() != 720 {
		t.Fatalf("decoded size = %dx%d, want 1280x720", b.Dx(), b.Dy())
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := decoded.At(x, y).RGBA(); a != 0 {
				t.Fatalf("pixel (%d,%d) alpha = %d, want fully transparent", x, y, a)
			}
		}
	}
}

func TestEncodePDF(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	img.Set(10, 10, color.RGBA{R: 0xff, A: 0xff})

	var buf bytes.Buffer
	if err := EncodePDF(&buf, img); err != nil {
		t.Fatalf("EncodePDF() error = %v", err)
	}

	out := buf.Bytes()
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Errorf("output does not start with a PDF header: %q", out[:min(8, len(out))])
	}
	if !bytes.Contains(out, []byte("%%EOF")) {
		t.Error("output is missing the PDF trailer")
	}
}

func TestThumbnail(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1280, 720))

	thumb := Thumbnail(img, 256)

	if b := thumb.Bounds(); b.Dx() != 256 || b.Dy() != 144 {
		t.Errorf("thumbnail = %dx%d, want 256x144", b.Dx(), b.Dy())
	}
}

func TestWriter_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	w, err := NewWriter(dir, "handraw", 128)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	w.now = func() time.Time { return time.UnixMilli(1700000000000) }

	img := image.NewRGBA(image.Rect(0, 0, 320, 240))

	first, err := w.Write(img, FormatPNG)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if first.Filename != "handraw-1700000000000.png" {
		t.Errorf("Filename = %q", first.Filename)
	}
	if first.Width != 320 || first.Height != 240 {
		t.Errorf("size = %dx%d, want 320x240", first.Width, first.Height)
	}
	if _, err := os.Stat(first.Path); err != nil {
		t.Errorf("export file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, first.Thumbnail)); err != nil {
		t.Errorf("thumbnail missing: %v", err)
	}

	second, err := w.Write(img, FormatPNG)
	if err != nil {
		t.Fatalf("second Write() error = %v", err)
	}
	if second.Filename == first.Filename {
		t.Error("exports in the same millisecond must not overwrite each other")
	}

	pdf, err := w.Write(img, FormatPDF)
	if err != nil {
		t.Fatalf("Write(pdf) error = %v", err)
	}
	if !strings.HasSuffix(pdf.Filename, ".pdf") {
		t.Errorf("pdf Filename = %q", pdf.Filename)
	}
}

func TestWriter_NoThumbnail(t *testing.T) {
	w, err := NewWriter(t.TempDir(), "x", 0)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	res, err := w.Write(image.NewRGBA(image.Rect(0, 0, 8, 8)), FormatPNG)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if res.Thumbnail != "" {
		t.Errorf("Thumbnail = %q, want none", res.Thumbnail)
	}
}

func TestWriter_Path(t *testing.T) {
	w, err := NewWriter(t.TempDir(), "handraw", 0)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	for _, bad := range []string{"", "../etc/passwd", "a/b.png", ".hidden"} {
		if _, err := w.Path(bad); err == nil {
			t.Errorf("Path(%q) should fail", bad)
		}
	}
	p, err := w.Path("handraw-1.png")
	if err != nil || p != filepath.Join(w.Dir(), "handraw-1.png") {
		t.Errorf("Path() = %q, %v", p, err)
	}
}

func TestWriter_ThumbnailFailureRemovesExport(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "handraw", 32)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	w.now = func() time.Time { return time.UnixMilli(1000) }

	// A directory in the thumbnail's place makes the thumbnail write fail.
	if err := os.Mkdir(filepath.Join(dir, "handraw-1000.thumb.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := w.Write(image.NewRGBA(image.Rect(0, 0, 8, 8)), FormatPNG); err == nil {
		t.Fatal("Write() should fail when the thumbnail cannot be created")
	}
	if _, err := os.Stat(filepath.Join(dir, "handraw-1000.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("export file left behind: stat error = %v", err)
	}
}

func TestWriter_Remove(t *testing.T) {
	w, err := NewWriter(t.TempDir(), "handraw", 16)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	res, err := w.Write(image.NewRGBA(image.Rect(0, 0, 8, 8)), FormatPNG)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if err := w.Remove(res.Filename, res.Thumbnail, "", "handraw-missing.png"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	for _, name := range []string{res.Filename, res.Thumbnail} {
		if _, err := os.Stat(filepath.Join(w.Dir(), name)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s still exists: %v", name, err)
		}
	}

	if err := w.Remove("../outside.png"); err == nil {
		t.Error("Remove() should reject names outside the export dir")
	}
}
