package app

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/VicFreyre/handraw-pipe/internal/export"
	"github.com/VicFreyre/handraw-pipe/internal/logger"
	"github.com/VicFreyre/handraw-pipe/internal/metrics"
	"github.com/VicFreyre/handraw-pipe/internal/store"
)

// ExportRecorder stores export records. *store.ExportRepository satisfies it.
type ExportRecorder interface {
	Create(e *store.ExportRecord) error
}

// Exporter snapshots the session surface into files.
type Exporter struct {
	session *Session
	writer  *export.Writer
	records ExportRecorder
	metrics *metrics.Metrics
}

// NewExporter creates an Exporter. records may be nil.
func NewExporter(session *Session, writer *export.Writer, records ExportRecorder, m *metrics.Metrics) *Exporter {
	if m == nil {
		m = metrics.New()
	}
	return &Exporter{session: session, writer: writer, records: records, metrics: m}
}

// Writer returns the file writer.
func (e *Exporter) Writer() *export.Writer {
	return e.writer
}

// Export writes the current surface in format f and records it.
func (e *Exporter) Export(f export.Format) (*store.ExportRecord, error) {
	res, err := e.writer.Write(e.session.Snapshot(), f)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", f, err)
	}

	rec := &store.ExportRecord{
		ID:        uuid.New().String(),
		Filename:  res.Filename,
		Format:    string(res.Format),
		Width:     res.Width,
		Height:    res.Height,
		Thumbnail: res.Thumbnail,
		CreatedAt: res.CreatedAt,
	}
	if e.records != nil {
		if err := e.records.Create(rec); err != nil {
			if rmErr := e.writer.Remove(res.Filename, res.Thumbnail); rmErr != nil {
				logger.S().Warnw("could not remove unrecorded export", "file", res.Filename, "error", rmErr)
			}
			return nil, fmt.Errorf("record export: %w", err)
		}
	}

	e.metrics.Exports.WithLabelValues(string(f)).Inc()
	return rec, nil
}
