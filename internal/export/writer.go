package export

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Result describes a file written by Writer.
type Result struct {
	Filename  string
	Path      string
	Thumbnail string // thumbnail file name, empty when disabled
	Format    Format
	Width     int
	Height    int
	CreatedAt time.Time
}

// Writer saves exports into a directory.
type Writer struct {
	dir       string
	prefix    string
	thumbSize uint
	now       func() time.Time
}

// NewWriter creates the export directory if needed. A zero thumbSize
// disables thumbnails.
func NewWriter(dir, prefix string, thumbSize uint) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Writer{
		dir:       dir,
		prefix:    prefix,
		thumbSize: thumbSize,
		now:       time.Now,
	}, nil
}

// Dir returns the export directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Path resolves a file name inside the export directory. It rejects names
// that would escape it.
func (w *Writer) Path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("invalid export file name %q", filename)
	}
	return filepath.Join(w.dir, filename), nil
}

// Write encodes img in format f under a fresh timestamped name, plus a PNG
// thumbnail beside it.
func (w *Writer) Write(img image.Image, f Format) (*Result, error) {
	created := w.now()

	file, name, err := w.create(f, created)
	if err != nil {
		return nil, err
	}

	if err := Encode(file, img, f); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, err
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return nil, fmt.Errorf("close export: %w", err)
	}

	b := img.Bounds()
	res := &Result{
		Filename:  name,
		Path:      file.Name(),
		Format:    f,
		Width:     b.Dx(),
		Height:    b.Dy(),
		CreatedAt: created,
	}

	if w.thumbSize > 0 {
		thumb := ThumbnailName(name)
		if err := w.writeThumbnail(img, thumb); err != nil {
			os.Remove(res.Path)
			return nil, err
		}
		res.Thumbnail = thumb
	}

	return res, nil
}

// create opens a new file, adding a counter when two exports land in the
// same millisecond.
func (w *Writer) create(f Format, t time.Time) (*os.File, string, error) {
	name := Filename(w.prefix, f, t)
	for n := 2; ; n++ {
		file, err := os.OpenFile(filepath.Join(w.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return file, name, nil
		}
		if !errors.Is(err, os.ErrExist) || n > 100 {
			return nil, "", fmt.Errorf("create export: %w", err)
		}
		name = fmt.Sprintf("%s-%d-%d.%s", w.prefix, t.UnixMilli(), n, f.Ext())
	}
}

// Remove deletes the named files from the export directory. Names that are
// empty or already gone are skipped.
func (w *Writer) Remove(filenames ...string) error {
	var errs []error
	for _, name := range filenames {
		if name == "" {
			continue
		}
		p, err := w.Path(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove export: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (w *Writer) writeThumbnail(img image.Image, name string) error {
	path := filepath.Join(w.dir, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create thumbnail: %w", err)
	}

	if err := EncodePNG(file, Thumbnail(img, w.thumbSize)); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("write thumbnail: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close thumbnail: %w", err)
	}
	return nil
}
