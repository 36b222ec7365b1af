package app

import (
	"bytes"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/VicFreyre/handraw-pipe/internal/canvas"
	"github.com/VicFreyre/handraw-pipe/internal/landmark"
	"github.com/VicFreyre/handraw-pipe/internal/metrics"
	"github.com/VicFreyre/handraw-pipe/internal/store"
)

func newTestSession(t *testing.T) (*Session, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	return NewSession(SessionConfig{Width: 1280, Height: 720, Metrics: m}), m
}

func pinch(x, y float64) []landmark.Hand {
	return []landmark.Hand{landmark.Pinch(x, y, 0)}
}

func open(x, y float64) []landmark.Hand {
	return []landmark.Hand{landmark.OpenHand(x, y)}
}

func TestSession_DrawsSegmentWithBrush(t *testing.T) {
	s, _ := newTestSession(t)

	first := s.ProcessFrame(pinch(0.25, 0.5))
	if first.Segment != nil || first.Action != "begin" {
		t.Fatalf("first pinch = %+v, want begin without segment", first)
	}
	second := s.ProcessFrame(pinch(0.5, 0.5))
	if second.Segment == nil || !second.Drawing {
		t.Fatalf("second pinch = %+v, want a segment", second)
	}

	snap := s.Snapshot()
	px := snap.RGBAAt(480, 360)
	if px.A != 0xff || px.R != 0x8b || px.B != 0xf6 {
		t.Errorf("pixel on the stroke = %v, want opaque default violet", px)
	}
	if snap.RGBAAt(480, 380).A != 0 {
		t.Error("size 5 stroke should not reach 20px off the line")
	}
}

func TestSession_BrushReadPerFrame(t *testing.T) {
	s, _ := newTestSession(t)

	s.ProcessFrame(pinch(0.1, 0.5))
	s.ProcessFrame(pinch(0.2, 0.5))

	red := "#EF4444"
	if _, err := s.UpdateBrush(canvas.BrushUpdate{Color: &red}); err != nil {
		t.Fatalf("UpdateBrush() error = %v", err)
	}
	// Changing color keeps the stroke going.
	res := s.ProcessFrame(pinch(0.3, 0.5))
	if res.Segment == nil {
		t.Fatal("color change must not break the stroke")
	}

	snap := s.Snapshot()
	if got := snap.RGBAAt(192, 360); got.R != 0x8b {
		t.Errorf("first segment = %v, want violet", got)
	}
	if got := snap.RGBAAt(320, 360); got.R != 0xef || got.G != 0x44 {
		t.Errorf("second segment = %v, want red", got)
	}
}

func TestSession_EraserToggleResetsStroke(t *testing.T) {
	s, _ := newTestSession(t)

	s.ProcessFrame(pinch(0.1, 0.5))
	s.ProcessFrame(pinch(0.2, 0.5))

	b, err := s.SetEraser(true)
	if err != nil {
		t.Fatalf("SetEraser() error = %v", err)
	}
	if !b.Eraser {
		t.Error("brush should be in eraser mode")
	}
	if s.Status().Drawing {
		t.Error("switching tool should end the stroke")
	}

	res := s.ProcessFrame(pinch(0.15, 0.5))
	if res.Segment != nil {
		t.Errorf("first frame after tool switch drew %+v", res.Segment)
	}

	res = s.ProcessFrame(pinch(0.12, 0.5))
	if res.Segment == nil {
		t.Fatal("eraser should draw on the next pinching frame")
	}
	// Eraser width is 10: the center of the erased span is transparent.
	if got := s.Snapshot().RGBAAt(172, 360).A; got != 0 {
		t.Errorf("alpha under the eraser = %d, want 0", got)
	}
}

func TestSession_SameToolKeepsStroke(t *testing.T) {
	s, _ := newTestSession(t)

	s.ProcessFrame(pinch(0.1, 0.5))
	size := 12
	if _, err := s.UpdateBrush(canvas.BrushUpdate{Size: &size}); err != nil {
		t.Fatalf("UpdateBrush() error = %v", err)
	}

	if !s.Status().Drawing {
		t.Error("size change should not end the stroke")
	}
}

func TestSession_InvalidBrushRejected(t *testing.T) {
	s, _ := newTestSession(t)
	bad := "#123456"

	if _, err := s.UpdateBrush(canvas.BrushUpdate{Color: &bad}); !errors.Is(err, canvas.ErrInvalidColor) {
		t.Errorf("UpdateBrush() error = %v, want ErrInvalidColor", err)
	}
	if s.Brush() != canvas.DefaultBrush() {
		t.Errorf("brush changed to %+v after a rejected update", s.Brush())
	}
}

func TestSession_ClearMatchesFresh(t *testing.T) {
	s, m := newTestSession(t)
	fresh, _ := newTestSession(t)

	for i := 0; i < 10; i++ {
		s.ProcessFrame(pinch(0.1+float64(i)*0.05, 0.4))
	}
	s.Clear()

	if !bytes.Equal(s.Snapshot().Pix, fresh.Snapshot().Pix) {
		t.Error("cleared surface differs from a fresh one")
	}
	if !s.Status().Drawing {
		t.Error("Clear must not end a held pinch")
	}
	if got := testutil.ToFloat64(m.Clears); got != 1 {
		t.Errorf("clears = %v, want 1", got)
	}
}

func TestSession_View(t *testing.T) {
	s, _ := newTestSession(t)

	if s.View() != ViewCamera {
		t.Errorf("default view = %q, want camera", s.View())
	}
	s.ProcessFrame(pinch(0.1, 0.5))
	s.ProcessFrame(pinch(0.2, 0.5))
	before := s.Snapshot()

	if err := s.SetView(ViewBoard); err != nil {
		t.Fatalf("SetView() error = %v", err)
	}
	if err := s.SetView("sepia"); !errors.Is(err, ErrInvalidView) {
		t.Errorf("SetView(sepia) error = %v, want ErrInvalidView", err)
	}

	if s.View() != ViewBoard {
		t.Errorf("view = %q, want board", s.View())
	}
	if !bytes.Equal(before.Pix, s.Snapshot().Pix) {
		t.Error("view change must not touch the surface")
	}
}

func TestSession_Metrics(t *testing.T) {
	s, m := newTestSession(t)

	frames := [][]landmark.Hand{
		nil,
		open(0.5, 0.5),
		pinch(0.1, 0.1),
		pinch(0.2, 0.1),
		pinch(0.3, 0.1),
		nil,
	}
	for _, f := range frames {
		s.ProcessFrame(f)
	}

	checks := map[string]float64{
		"processed": testutil.ToFloat64(m.FramesProcessed),
		"hands":     testutil.ToFloat64(m.HandsDetected),
		"strokes":   testutil.ToFloat64(m.Strokes),
		"segments":  testutil.ToFloat64(m.Segments),
		"drawing":   testutil.ToFloat64(m.Drawing),
	}
	want := map[string]float64{"processed": 6, "hands": 4, "strokes": 1, "segments": 2, "drawing": 0}
	for k, v := range want {
		if checks[k] != v {
			t.Errorf("%s = %v, want %v", k, checks[k], v)
		}
	}
}

func TestSession_Subscribe(t *testing.T) {
	s, _ := newTestSession(t)
	ch, cancel := s.Subscribe()

	s.ProcessFrame(pinch(0.5, 0.5))

	res := <-ch
	if res.State != "drawing" || !res.Hand {
		t.Errorf("published %+v, want drawing with a hand", res)
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	s.ProcessFrame(nil) // must not panic on a cancelled subscriber
}

func TestSession_Hands(t *testing.T) {
	s, _ := newTestSession(t)

	s.ProcessFrame(pinch(0.5, 0.5))
	hands, pinching := s.Hands()
	if len(hands) != 1 || !pinching {
		t.Errorf("Hands() = %d hands, pinching %v", len(hands), pinching)
	}

	s.ProcessFrame(nil)
	if hands, pinching := s.Hands(); len(hands) != 0 || pinching {
		t.Errorf("Hands() after loss = %d hands, pinching %v", len(hands), pinching)
	}
}

func TestSession_PersistsSettings(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	cfg := SessionConfig{Width: 320, Height: 240, Settings: st.Settings()}

	first := NewSession(cfg)
	color, size := "#06B6D4", 17
	if _, err := first.UpdateBrush(canvas.BrushUpdate{Color: &color, Size: &size}); err != nil {
		t.Fatalf("UpdateBrush() error = %v", err)
	}
	if err := first.SetView(ViewBoard); err != nil {
		t.Fatalf("SetView() error = %v", err)
	}

	second := NewSession(cfg)
	if b := second.Brush(); b.Color != color || b.Size != size {
		t.Errorf("restored brush = %+v", b)
	}
	if second.View() != ViewBoard {
		t.Errorf("restored view = %q", second.View())
	}
	if second.Status().Drawing {
		t.Error("drawing state must never be restored")
	}
}

func TestParseViewMode(t *testing.T) {
	for _, ok := range []string{"camera", "board"} {
		if _, err := ParseViewMode(ok); err != nil {
			t.Errorf("ParseViewMode(%q) error = %v", ok, err)
		}
	}
	if _, err := ParseViewMode("Board"); err == nil {
		t.Error("view modes are case sensitive")
	}
}

// orderedSettings records every brush write.
type orderedSettings struct {
	mu      sync.Mutex
	brushes []canvas.Brush
}

func (o *orderedSettings) GetJSON(string, any) error { return store.ErrNotFound }

func (o *orderedSettings) SetJSON(key string, v any) error {
	if key != store.SettingBrush {
		return nil
	}
	// Widen the window between the in-memory update and the write.
	time.Sleep(time.Millisecond)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.brushes = append(o.brushes, v.(canvas.Brush))
	return nil
}

func TestSession_PersistsInUpdateOrder(t *testing.T) {
	settings := &orderedSettings{}
	s := NewSession(SessionConfig{Width: 16, Height: 16, Settings: settings})

	var wg sync.WaitGroup
	for size := canvas.MinBrushSize; size <= canvas.MaxBrushSize; size++ {
		wg.Add(1)
		go func(size int) {
			defer wg.Done()
			if _, err := s.UpdateBrush(canvas.BrushUpdate{Size: &size}); err != nil {
				t.Errorf("UpdateBrush(%d) error = %v", size, err)
			}
		}(size)
	}
	wg.Wait()

	settings.mu.Lock()
	defer settings.mu.Unlock()
	last := settings.brushes[len(settings.brushes)-1]
	if last != s.Brush() {
		t.Errorf("last persisted brush = %+v, in memory = %+v", last, s.Brush())
	}
}

func TestSession_EndsStroke(t *testing.T) {
	s, _ := newTestSession(t)

	if !s.EndsStroke(nil) || !s.EndsStroke(open(0.5, 0.5)) {
		t.Error("no hand and an open hand should end a stroke")
	}
	if s.EndsStroke(pinch(0.5, 0.5)) {
		t.Error("a pinch should not end a stroke")
	}
}
