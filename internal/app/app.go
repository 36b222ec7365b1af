// Package app wires landmark sources to the drawing session.
//
// Frames reach the session through a latest-only mailbox: a producer (the
// camera loop or a WebSocket client) never waits, and a frame that arrives
// while an older one is still queued replaces it. One consumer goroutine
// processes frames strictly in order, one at a time.
package app

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/VicFreyre/handraw-pipe/internal/capture"
	"github.com/VicFreyre/handraw-pipe/internal/detector"
	"github.com/VicFreyre/handraw-pipe/internal/landmark"
	"github.com/VicFreyre/handraw-pipe/internal/logger"
	"github.com/VicFreyre/handraw-pipe/internal/metrics"
	"github.com/VicFreyre/handraw-pipe/internal/overlay"
)

// DefaultFPS is the capture loop rate when the camera reports none.
const DefaultFPS = 30

// Config holds configuration options for the application.
type Config struct {
	Session *Session
	Metrics *metrics.Metrics

	// Camera and Detector form the server-side landmark source. Leave
	// Camera nil when landmarks arrive from clients.
	Camera   capture.Camera
	Detector detector.Detector

	// Mirror flips the preview horizontally.
	Mirror bool
}

type frameInput struct {
	hands     []landmark.Hand
	received  time.Time
	endStroke bool // a dropped frame before this one would have ended the stroke
}

// App runs the frame pipeline.
type App struct {
	config   Config
	session  *Session
	metrics  *metrics.Metrics
	camera   capture.Camera
	detector detector.Detector
	frames   chan frameInput
	log      *zap.SugaredLogger

	mu      sync.RWMutex
	enabled bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	previewMu sync.RWMutex
	preview   []byte
	viewers   int
}

// New creates a new App. With a camera and no detector, the MediaPipe
// detector is tried first with the mock detector as fallback.
func New(config Config) *App {
	if config.Metrics == nil {
		config.Metrics = metrics.New()
	}
	if config.Session == nil {
		config.Session = NewSession(SessionConfig{
			Width:   capture.DefaultWidth,
			Height:  capture.DefaultHeight,
			Metrics: config.Metrics,
		})
	}

	a := &App{
		config:   config,
		session:  config.Session,
		metrics:  config.Metrics,
		camera:   config.Camera,
		detector: config.Detector,
		frames:   make(chan frameInput, 1),
		log:      logger.Named("app").Sugar(),
		enabled:  true,
	}

	if a.camera != nil && a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
			a.detector = mp
			a.log.Info("using MediaPipe hand detection")
		} else {
			a.log.Warnw("MediaPipe not available, using mock detector", "error", err)
			a.detector = detector.NewMockDetector()
		}
	}

	return a
}

// Session returns the drawing session.
func (a *App) Session() *Session {
	return a.session
}

// Metrics returns the pipeline metrics.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Camera returns the camera, or nil for client-fed pipelines.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// SetDetector sets the hand detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// SetEnabled pauses or resumes drawing. Pausing ends the current stroke.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()

	if !enabled {
		a.session.ResetStroke()
	}
}

// IsEnabled returns whether frames are being processed.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Running reports whether the pipeline goroutines are started.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Submit hands one frame of landmarks to the pipeline without blocking. If
// an unprocessed frame is pending it is discarded and counted as dropped.
// A discarded frame that would have ended the stroke still ends it: the
// replacement frame carries the break, so no segment spans the gap.
func (a *App) Submit(hands []landmark.Hand) {
	in := frameInput{hands: hands, received: time.Now()}
	for {
		select {
		case a.frames <- in:
			return
		default:
		}
		select {
		case old := <-a.frames:
			a.metrics.FramesDropped.Inc()
			if old.endStroke || a.session.EndsStroke(old.hands) {
				in.endStroke = true
			}
		default:
		}
	}
}

// Start begins the pipeline. A camera that cannot be opened is logged and
// skipped: the app keeps serving, nothing is captured.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	stopCh := make(chan struct{})
	a.stopCh = stopCh

	a.wg.Add(1)
	go a.consume(stopCh)

	if a.camera != nil {
		if err := a.camera.Open(); err != nil {
			a.log.Warnw("camera unavailable, continuing without capture", "error", err)
		} else {
			a.wg.Add(1)
			go a.captureLoop(stopCh)
		}
	}

	a.log.Info("frame pipeline started")
	return nil
}

// Stop halts the pipeline, waits for its goroutines and releases the camera
// and detector.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh := a.stopCh
	a.stopCh = nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	a.wg.Wait()

	if a.camera != nil {
		if err := a.camera.Close(); err != nil {
			a.log.Warnw("error closing camera", "error", err)
		}
	}
	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			a.log.Warnw("error closing detector", "error", err)
		}
	}

	a.log.Info("frame pipeline stopped")
}

// consume is the single frame consumer.
func (a *App) consume(stopCh <-chan struct{}) {
	defer a.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		case in := <-a.frames:
			if !a.IsEnabled() {
				continue
			}
			if in.endStroke {
				a.session.ResetStroke()
			}
			a.session.ProcessFrame(in.hands)
			a.metrics.FrameSeconds.Observe(time.Since(in.received).Seconds())
		}
	}
}

// captureLoop reads camera frames at the camera FPS, detects hands and
// submits them. It also refreshes the preview while someone is watching.
func (a *App) captureLoop(stopCh <-chan struct{}) {
	defer a.wg.Done()

	fps := a.camera.FPS()
	if fps <= 0 {
		fps = DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			a.captureOnce()
		}
	}
}

func (a *App) captureOnce() {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.log.Debugw("error reading frame", "error", err)
		return
	}
	defer frame.Close()

	d := a.Detector()
	if d == nil {
		return
	}
	hands, err := d.Detect(frame)
	if err != nil {
		a.metrics.DetectErrors.Inc()
		a.log.Debugw("error detecting hands", "error", err)
		return
	}

	a.Submit(hands)

	if a.watching() {
		a.renderPreview(*frame, hands)
	}
}

func (a *App) renderPreview(frame gocv.Mat, hands []landmark.Hand) {
	_, pinching := a.session.Hands()
	data, err := overlay.RenderJPEG(frame, overlay.Options{
		Hands:    hands,
		Surface:  a.session.Snapshot(),
		Board:    a.session.View() == ViewBoard,
		Pinching: pinching,
		Mirror:   a.config.Mirror,
	})
	if err != nil {
		a.log.Debugw("error rendering preview", "error", err)
		return
	}

	a.previewMu.Lock()
	a.preview = data
	a.previewMu.Unlock()
}

// WatchPreview registers a preview viewer. The returned function
// unregisters it. Previews are only rendered while at least one viewer is
// registered.
func (a *App) WatchPreview() func() {
	a.previewMu.Lock()
	a.viewers++
	a.previewMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.previewMu.Lock()
			a.viewers--
			if a.viewers == 0 {
				a.preview = nil
			}
			a.previewMu.Unlock()
		})
	}
}

func (a *App) watching() bool {
	a.previewMu.RLock()
	defer a.previewMu.RUnlock()
	return a.viewers > 0
}

// Preview returns the latest preview JPEG, or nil if none was rendered yet.
func (a *App) Preview() []byte {
	a.previewMu.RLock()
	defer a.previewMu.RUnlock()
	return a.preview
}
