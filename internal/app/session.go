package app

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"

	"github.com/VicFreyre/handraw-pipe/internal/canvas"
	"github.com/VicFreyre/handraw-pipe/internal/gesture"
	"github.com/VicFreyre/handraw-pipe/internal/landmark"
	"github.com/VicFreyre/handraw-pipe/internal/logger"
	"github.com/VicFreyre/handraw-pipe/internal/metrics"
	"github.com/VicFreyre/handraw-pipe/internal/store"
)

// ViewMode is the cosmetic background of the preview.
type ViewMode string

const (
	ViewCamera ViewMode = "camera"
	ViewBoard  ViewMode = "board"
)

// ErrInvalidView is returned for view modes other than camera and board.
var ErrInvalidView = errors.New("invalid view mode")

// ParseViewMode validates a view mode name.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case ViewCamera, ViewBoard:
		return ViewMode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidView, s)
}

// SettingsStore persists session preferences. *store.SettingsRepository
// satisfies it.
type SettingsStore interface {
	GetJSON(key string, v any) error
	SetJSON(key string, v any) error
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Width          int
	Height         int
	PinchThreshold float64
	EraserScale    float64
	Metrics        *metrics.Metrics
	Settings       SettingsStore // optional
}

// FrameResult is the outcome of processing one frame.
type FrameResult struct {
	State   string           `json:"state"`
	Drawing bool             `json:"drawing"`
	Action  string           `json:"action"`
	Hand    bool             `json:"hand"`
	Segment *gesture.Segment `json:"segment,omitempty"`
}

// Status is a point-in-time view of the session.
type Status struct {
	State   string       `json:"state"`
	Drawing bool         `json:"drawing"`
	Brush   canvas.Brush `json:"brush"`
	View    ViewMode     `json:"view"`
	Width   int          `json:"width"`
	Height  int          `json:"height"`
}

// Session is the drawing context shared by the frame loop and the API:
// brush, drawing state, stroke surface and view mode. All methods are safe
// for concurrent use.
type Session struct {
	mu          sync.Mutex
	tracker     *gesture.Tracker
	surface     *canvas.Surface
	brush       canvas.Brush
	view        ViewMode
	eraserScale float64
	hands       []landmark.Hand
	pinching    bool

	// persistMu is taken before mu is released so settings are written in
	// the order the updates were applied.
	persistMu sync.Mutex
	settings  SettingsStore
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger

	subMu sync.Mutex
	subs  map[chan FrameResult]struct{}
}

// NewSession creates a session with a blank surface and the default brush.
// When a settings store is configured, the last brush and view are restored.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.EraserScale <= 0 {
		cfg.EraserScale = canvas.DefaultEraserScale
	}

	s := &Session{
		tracker:     gesture.NewTracker(gesture.Size{Width: cfg.Width, Height: cfg.Height}, cfg.PinchThreshold),
		surface:     canvas.NewSurface(cfg.Width, cfg.Height),
		brush:       canvas.DefaultBrush(),
		view:        ViewCamera,
		eraserScale: cfg.EraserScale,
		settings:    cfg.Settings,
		metrics:     cfg.Metrics,
		log:         logger.Named("session").Sugar(),
		subs:        make(map[chan FrameResult]struct{}),
	}
	s.restore()
	return s
}

func (s *Session) restore() {
	if s.settings == nil {
		return
	}

	var b canvas.Brush
	switch err := s.settings.GetJSON(store.SettingBrush, &b); {
	case err == nil && b.Validate() == nil:
		s.brush = b
	case err != nil && !errors.Is(err, store.ErrNotFound):
		s.log.Warnw("could not restore brush", "error", err)
	}

	var v ViewMode
	if err := s.settings.GetJSON(store.SettingView, &v); err == nil {
		if mode, err := ParseViewMode(string(v)); err == nil {
			s.view = mode
		}
	}
}

// ProcessFrame advances the drawing state machine by one frame and renders
// the resulting segment, if any, with the brush current at this moment.
func (s *Session) ProcessFrame(hands []landmark.Hand) FrameResult {
	s.mu.Lock()
	step := s.tracker.Step(hands)
	s.hands = hands
	s.pinching = step.Reading != nil && step.Reading.Pinching

	if step.Segment != nil {
		if st, err := s.brush.Stroke(s.eraserScale); err == nil {
			s.surface.DrawSegment(toCanvas(step.Segment.From), toCanvas(step.Segment.To), st)
		} else {
			s.log.Errorw("brush cannot render", "brush", s.brush, "error", err)
		}
	}
	s.mu.Unlock()

	s.metrics.FramesProcessed.Inc()
	if step.HandSeen {
		s.metrics.HandsDetected.Inc()
	}
	switch step.Action {
	case gesture.ActionBegin:
		s.metrics.Strokes.Inc()
	case gesture.ActionContinue:
		s.metrics.Segments.Inc()
	}
	s.metrics.SetDrawing(step.State == gesture.StateDrawing)

	res := FrameResult{
		State:   step.State.String(),
		Drawing: step.State == gesture.StateDrawing,
		Action:  step.Action.String(),
		Hand:    step.HandSeen,
		Segment: step.Segment,
	}
	s.publish(res)
	return res
}

func toCanvas(p gesture.Point) canvas.Point {
	return canvas.Point{X: p.X, Y: p.Y}
}

// EndsStroke reports whether hands, if processed, would end a stroke: no
// hand, or a first hand that is not pinching.
func (s *Session) EndsStroke(hands []landmark.Hand) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.tracker.Pinching(hands)
}

// ResetStroke ends any stroke in progress.
func (s *Session) ResetStroke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.Reset()
	s.metrics.SetDrawing(false)
}

// Brush returns the current brush.
func (s *Session) Brush() canvas.Brush {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brush
}

// UpdateBrush applies a partial brush change. Switching between brush and
// eraser ends the current stroke so the next segment starts fresh.
func (s *Session) UpdateBrush(u canvas.BrushUpdate) (canvas.Brush, error) {
	s.mu.Lock()
	next, err := s.brush.Apply(u)
	if err != nil {
		s.mu.Unlock()
		return canvas.Brush{}, err
	}
	if next.Eraser != s.brush.Eraser {
		s.tracker.Reset()
	}
	s.brush = next
	s.persistMu.Lock()
	s.mu.Unlock()

	s.persist(store.SettingBrush, next)
	s.persistMu.Unlock()
	return next, nil
}

// SetEraser switches between brush and eraser.
func (s *Session) SetEraser(on bool) (canvas.Brush, error) {
	return s.UpdateBrush(canvas.BrushUpdate{Eraser: &on})
}

// View returns the current view mode.
func (s *Session) View() ViewMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetView changes the view mode. It never touches the surface.
func (s *Session) SetView(v ViewMode) error {
	if _, err := ParseViewMode(string(v)); err != nil {
		return err
	}
	s.mu.Lock()
	s.view = v
	s.persistMu.Lock()
	s.mu.Unlock()

	s.persist(store.SettingView, v)
	s.persistMu.Unlock()
	return nil
}

func (s *Session) persist(key string, v any) {
	if s.settings == nil {
		return
	}
	if err := s.settings.SetJSON(key, v); err != nil {
		s.log.Warnw("could not persist setting", "key", key, "error", err)
	}
}

// Clear wipes the surface. The drawing state is untouched: a held pinch
// keeps drawing from its last point.
func (s *Session) Clear() {
	s.mu.Lock()
	s.surface.Clear()
	s.mu.Unlock()
	s.metrics.Clears.Inc()
}

// Snapshot returns a copy of the stroke surface.
func (s *Session) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface.Snapshot()
}

// Hands returns the hands of the last processed frame and whether the first
// one was pinching.
func (s *Session) Hands() ([]landmark.Hand, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hands, s.pinching
}

// Status returns the current state, brush and view.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.surface.Bounds()
	state := s.tracker.State()
	return Status{
		State:   state.String(),
		Drawing: state == gesture.StateDrawing,
		Brush:   s.brush,
		View:    s.view,
		Width:   b.Dx(),
		Height:  b.Dy(),
	}
}

// Subscribe returns a channel receiving every FrameResult and a function
// that cancels the subscription. Slow subscribers miss results rather than
// block the frame loop.
func (s *Session) Subscribe() (<-chan FrameResult, func()) {
	ch := make(chan FrameResult, 8)

	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) publish(res FrameResult) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- res:
		default:
		}
	}
}
