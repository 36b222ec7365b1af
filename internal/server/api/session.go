package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/VicFreyre/handraw-pipe/internal/app"
	"github.com/VicFreyre/handraw-pipe/internal/canvas"
	"github.com/VicFreyre/handraw-pipe/internal/export"
)

// SessionHandler serves the live drawing session: status, palette, brush,
// view mode and the stroke surface.
type SessionHandler struct {
	app *app.App
}

// NewSessionHandler creates a SessionHandler for the given app.
func NewSessionHandler(a *app.App) *SessionHandler {
	return &SessionHandler{app: a}
}

// Register mounts the session routes on mux.
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", h.status)
	mux.HandleFunc("/api/palette", h.palette)
	mux.HandleFunc("/api/brush", h.brush)
	mux.HandleFunc("/api/view", h.view)
	mux.HandleFunc("/api/canvas", h.canvas)
}

type statusResponse struct {
	app.Status
	Enabled bool `json:"enabled"`
	Camera  bool `json:"camera"`
}

type paletteResponse struct {
	Colors  []string `json:"colors"`
	MinSize int      `json:"min_size"`
	MaxSize int      `json:"max_size"`
}

type brushRequest struct {
	Color  *string `json:"color"`
	Size   *int    `json:"size"`
	Eraser *bool   `json:"eraser"`
}

type viewRequest struct {
	Mode string `json:"mode"`
}

type viewResponse struct {
	Mode app.ViewMode `json:"mode"`
}

func (h *SessionHandler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  h.app.Session().Status(),
		Enabled: h.app.IsEnabled(),
		Camera:  h.app.Camera() != nil && h.app.Camera().IsOpen(),
	})
}

func (h *SessionHandler) palette(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, paletteResponse{
		Colors:  canvas.Palette,
		MinSize: canvas.MinBrushSize,
		MaxSize: canvas.MaxBrushSize,
	})
}

// brush handles GET and PUT /api/brush. PUT accepts partial updates.
func (h *SessionHandler) brush(w http.ResponseWriter, r *http.Request) {
	session := h.app.Session()

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, session.Brush())
	case http.MethodPut:
		var req brushRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		b, err := session.UpdateBrush(canvas.BrushUpdate{
			Color:  req.Color,
			Size:   req.Size,
			Eraser: req.Eraser,
		})
		if err != nil {
			if errors.Is(err, canvas.ErrInvalidColor) || errors.Is(err, canvas.ErrInvalidSize) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to update brush")
			return
		}
		writeJSON(w, http.StatusOK, b)
	default:
		methodNotAllowed(w)
	}
}

// view handles GET and PUT /api/view.
func (h *SessionHandler) view(w http.ResponseWriter, r *http.Request) {
	session := h.app.Session()

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, viewResponse{Mode: session.View()})
	case http.MethodPut:
		var req viewRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode, err := app.ParseViewMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := session.SetView(mode); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to set view")
			return
		}
		writeJSON(w, http.StatusOK, viewResponse{Mode: mode})
	default:
		methodNotAllowed(w)
	}
}

// canvas handles GET (PNG snapshot) and DELETE (clear) on /api/canvas.
func (h *SessionHandler) canvas(w http.ResponseWriter, r *http.Request) {
	session := h.app.Session()

	switch r.Method {
	case http.MethodGet:
		var buf bytes.Buffer
		if err := export.EncodePNG(&buf, session.Snapshot()); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to encode canvas")
			return
		}
		w.Header().Set("Content-Type", export.FormatPNG.ContentType())
		w.Header().Set("Cache-Control", "no-store")
		w.Write(buf.Bytes())
	case http.MethodDelete:
		session.Clear()
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}
