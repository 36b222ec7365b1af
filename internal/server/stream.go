package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/VicFreyre/handraw-pipe/internal/app"
)

// DefaultStreamFPS is the preview rate when none is configured.
const DefaultStreamFPS = 15

// StreamHandler serves the mirrored preview as MJPEG.
type StreamHandler struct {
	app      *app.App
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler publishing at most fps frames
// per second.
func NewStreamHandler(a *app.App, fps int) *StreamHandler {
	if fps <= 0 {
		fps = DefaultStreamFPS
	}
	return &StreamHandler{app: a, interval: time.Second / time.Duration(fps)}
}

// ServeHTTP streams preview frames until the client goes away. The app only
// renders previews while at least one stream is open.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	release := h.app.WatchPreview()
	defer release()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last []byte
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		frame := h.app.Preview()
		if len(frame) == 0 || sameFrame(frame, last) {
			continue
		}
		last = frame

		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
			return
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// sameFrame reports whether a and b are the same rendered buffer. Previews
// are replaced, never mutated, so identity is enough.
func sameFrame(a, b []byte) bool {
	return len(a) == len(b) && len(a) > 0 && &a[0] == &b[0]
}
