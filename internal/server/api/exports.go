package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/VicFreyre/handraw-pipe/internal/app"
	"github.com/VicFreyre/handraw-pipe/internal/export"
	"github.com/VicFreyre/handraw-pipe/internal/logger"
	"github.com/VicFreyre/handraw-pipe/internal/store"
)

const defaultListLimit = 50

// ExportsHandler handles HTTP requests for export resources.
type ExportsHandler struct {
	exporter *app.Exporter
	records  *store.ExportRepository
}

// NewExportsHandler creates a new ExportsHandler.
func NewExportsHandler(exporter *app.Exporter, records *store.ExportRepository) *ExportsHandler {
	return &ExportsHandler{exporter: exporter, records: records}
}

// ServeHTTP routes /api/exports, /api/exports/{id} and
// /api/exports/{id}/thumbnail.
func (h *ExportsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/exports")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			methodNotAllowed(w)
		}
		return
	}

	id, rest, _ := strings.Cut(path, "/")
	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.download(w, r, id)
	case rest == "" && r.Method == http.MethodDelete:
		h.delete(w, r, id)
	case rest == "thumbnail" && r.Method == http.MethodGet:
		h.thumbnail(w, r, id)
	case rest == "" || rest == "thumbnail":
		methodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type createExportRequest struct {
	Format string `json:"format"`
}

type exportResponse struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	CreatedAt string `json:"created_at"`
}

type listExportsResponse struct {
	Exports []exportResponse `json:"exports"`
}

func toExportResponse(e *store.ExportRecord) exportResponse {
	res := exportResponse{
		ID:        e.ID,
		Filename:  e.Filename,
		Format:    e.Format,
		Width:     e.Width,
		Height:    e.Height,
		URL:       "/api/exports/" + e.ID,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
	if e.Thumbnail != "" {
		res.Thumbnail = res.URL + "/thumbnail"
	}
	return res
}

// list handles GET /api/exports?limit=N, newest first.
func (h *ExportsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.records.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list exports")
		return
	}

	resp := listExportsResponse{Exports: make([]exportResponse, len(records))}
	for i, e := range records {
		resp.Exports[i] = toExportResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

// create handles POST /api/exports. An empty body exports a PNG.
func (h *ExportsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createExportRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	f, err := export.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.exporter.Export(f)
	if err != nil {
		logger.S().Errorw("export failed", "format", f, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export canvas")
		return
	}
	writeJSON(w, http.StatusCreated, toExportResponse(rec))
}

// download handles GET /api/exports/{id}.
func (h *ExportsHandler) download(w http.ResponseWriter, r *http.Request, id string) {
	rec, ok := h.lookup(w, id)
	if !ok {
		return
	}
	f, err := export.ParseFormat(rec.Format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stored export has an unknown format")
		return
	}

	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.Filename))
	h.serveFile(w, r, rec.Filename)
}

// thumbnail handles GET /api/exports/{id}/thumbnail.
func (h *ExportsHandler) thumbnail(w http.ResponseWriter, r *http.Request, id string) {
	rec, ok := h.lookup(w, id)
	if !ok {
		return
	}
	if rec.Thumbnail == "" {
		writeError(w, http.StatusNotFound, "export has no thumbnail")
		return
	}

	w.Header().Set("Content-Type", export.FormatPNG.ContentType())
	h.serveFile(w, r, rec.Thumbnail)
}

// delete handles DELETE /api/exports/{id}, removing the record and its files.
func (h *ExportsHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	rec, ok := h.lookup(w, id)
	if !ok {
		return
	}
	if err := h.records.Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete export")
		return
	}

	if err := h.exporter.Writer().Remove(rec.Filename, rec.Thumbnail); err != nil {
		logger.S().Warnw("could not remove export files", "id", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ExportsHandler) lookup(w http.ResponseWriter, id string) (*store.ExportRecord, bool) {
	rec, err := h.records.GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "export not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "failed to get export")
		return nil, false
	}
	return rec, true
}

func (h *ExportsHandler) serveFile(w http.ResponseWriter, r *http.Request, name string) {
	p, err := h.exporter.Writer().Path(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stored export has an invalid file name")
		return
	}

	file, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "export file is missing")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to open export")
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open export")
		return
	}
	http.ServeContent(w, r, name, info.ModTime(), file)
}
