package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/VicFreyre/handraw-pipe/internal/app"
	"github.com/VicFreyre/handraw-pipe/internal/canvas"
	"github.com/VicFreyre/handraw-pipe/internal/landmark"
	"github.com/VicFreyre/handraw-pipe/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func newTestApp(t *testing.T, settings app.SettingsStore) *app.App {
	t.Helper()
	a := app.New(app.Config{
		Session: app.NewSession(app.SessionConfig{Width: 320, Height: 240, Settings: settings}),
	})
	t.Cleanup(a.Stop)
	return a
}

func newSessionMux(a *app.App) *http.ServeMux {
	mux := http.NewServeMux()
	NewSessionHandler(a).Register(mux)
	return mux
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSessionHandler_Status(t *testing.T) {
	a := newTestApp(t, nil)
	mux := newSessionMux(a)

	rec := do(mux, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		State   string       `json:"state"`
		Drawing bool         `json:"drawing"`
		Brush   canvas.Brush `json:"brush"`
		View    string       `json:"view"`
		Enabled bool         `json:"enabled"`
		Width   int          `json:"width"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.State != "idle" || resp.Drawing {
		t.Errorf("state = %q drawing = %v, want idle", resp.State, resp.Drawing)
	}
	if resp.Brush != canvas.DefaultBrush() {
		t.Errorf("brush = %+v, want default", resp.Brush)
	}
	if resp.View != "camera" || !resp.Enabled || resp.Width != 320 {
		t.Errorf("unexpected status %+v", resp)
	}

	if rec := do(mux, http.MethodPost, "/api/status", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestSessionHandler_Palette(t *testing.T) {
	rec := do(newSessionMux(newTestApp(t, nil)), http.MethodGet, "/api/palette", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Colors  []string `json:"colors"`
		MaxSize int      `json:"max_size"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Colors) != len(canvas.Palette) || resp.MaxSize != canvas.MaxBrushSize {
		t.Errorf("palette = %+v", resp)
	}
}

func TestSessionHandler_Brush(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		want       canvas.Brush
	}{
		{
			name:       "color only",
			body:       `{"color":"#ef4444"}`,
			wantStatus: http.StatusOK,
			want:       canvas.Brush{Color: "#EF4444", Size: canvas.DefaultBrushSize},
		},
		{
			name:       "size and eraser",
			body:       `{"size":12,"eraser":true}`,
			wantStatus: http.StatusOK,
			want:       canvas.Brush{Color: canvas.DefaultBrushColor, Size: 12, Eraser: true},
		},
		{name: "size too large", body: `{"size":21}`, wantStatus: http.StatusBadRequest},
		{name: "size too small", body: `{"size":0}`, wantStatus: http.StatusBadRequest},
		{name: "not a color", body: `{"color":"violet"}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{"size":`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t, nil)
			mux := newSessionMux(a)

			rec := do(mux, http.MethodPut, "/api/brush", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if got := a.Session().Brush(); got != canvas.DefaultBrush() {
					t.Errorf("rejected update changed the brush to %+v", got)
				}
				return
			}

			var got canvas.Brush
			json.NewDecoder(rec.Body).Decode(&got)
			if got != tt.want {
				t.Errorf("brush = %+v, want %+v", got, tt.want)
			}
			if a.Session().Brush() != tt.want {
				t.Errorf("session brush = %+v, want %+v", a.Session().Brush(), tt.want)
			}
		})
	}
}

func TestSessionHandler_BrushPersists(t *testing.T) {
	st := newTestStore(t)
	a := newTestApp(t, st.Settings())

	if rec := do(newSessionMux(a), http.MethodPut, "/api/brush", `{"color":"#22C55E","size":8}`); rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d", rec.Code)
	}

	// A new session on the same store starts with the saved brush.
	restored := app.NewSession(app.SessionConfig{Width: 320, Height: 240, Settings: st.Settings()})
	if got := restored.Brush(); got.Color != "#22C55E" || got.Size != 8 {
		t.Errorf("restored brush = %+v", got)
	}
}

func TestSessionHandler_View(t *testing.T) {
	a := newTestApp(t, nil)
	mux := newSessionMux(a)

	if rec := do(mux, http.MethodPut, "/api/view", `{"mode":"board"}`); rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d", rec.Code)
	}
	if a.Session().View() != app.ViewBoard {
		t.Errorf("view = %q, want board", a.Session().View())
	}

	rec := do(mux, http.MethodGet, "/api/view", "")
	if !strings.Contains(rec.Body.String(), `"mode":"board"`) {
		t.Errorf("GET body = %s", rec.Body.String())
	}

	if rec := do(mux, http.MethodPut, "/api/view", `{"mode":"fullscreen"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid mode status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSessionHandler_Canvas(t *testing.T) {
	a := newTestApp(t, nil)
	mux := newSessionMux(a)

	s := a.Session()
	s.ProcessFrame([]landmark.Hand{landmark.Pinch(0.2, 0.5, 0)})
	s.ProcessFrame([]landmark.Hand{landmark.Pinch(0.8, 0.5, 0)})

	rec := do(mux, http.MethodGet, "/api/canvas", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("GET = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if _, _, _, alpha := img.At(160, 120).RGBA(); alpha == 0 {
		t.Error("canvas snapshot should contain the stroke")
	}

	if rec := do(mux, http.MethodDelete, "/api/canvas", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", rec.Code)
	}
	if a.Session().Snapshot().RGBAAt(160, 120).A != 0 {
		t.Error("canvas should be clear after DELETE")
	}
}
