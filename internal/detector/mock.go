package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/VicFreyre/handraw-pipe/internal/landmark"
)

// MockDetector is a test implementation of the Detector interface.
// It returns fixed hands, or plays back a sequence one frame per call.
type MockDetector struct {
	mu       sync.Mutex
	hands    []landmark.Hand
	sequence [][]landmark.Hand
	err      error
	calls    int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []landmark.Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetSequence queues per-frame results. Once exhausted, Detect falls back
// to the hands set with SetHands.
func (m *MockDetector) SetSequence(frames [][]landmark.Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = frames
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next queued frame, the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]landmark.Hand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		next := m.sequence[0]
		m.sequence = m.sequence[1:]
		return next, nil
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}
