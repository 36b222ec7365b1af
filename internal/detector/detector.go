// Package detector turns video frames into hand landmarks.
package detector

import (
	"fmt"
	"strconv"

	"gocv.io/x/gocv"

	"github.com/VicFreyre/handraw-pipe/internal/landmark"
)

// Detector is the Landmark Source: it turns one video frame into zero or
// more hand landmark sets.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]landmark.Hand, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds the hand model options.
type Config struct {
	MaxHands               int
	ModelComplexity        int
	MinDetectionConfidence float64
	MinTrackingConfidence  float64
}

// DefaultConfig returns the fixed options used for drawing: one tracked hand,
// the full landmark model and a stricter detection than tracking threshold.
func DefaultConfig() Config {
	return Config{
		MaxHands:               1,
		ModelComplexity:        1,
		MinDetectionConfidence: 0.7,
		MinTrackingConfidence:  0.5,
	}
}

// Validate checks the option ranges accepted by the hand model.
func (c Config) Validate() error {
	if c.MaxHands < 1 {
		return fmt.Errorf("max hands must be at least 1, got %d", c.MaxHands)
	}
	if c.ModelComplexity != 0 && c.ModelComplexity != 1 {
		return fmt.Errorf("model complexity must be 0 or 1, got %d", c.ModelComplexity)
	}
	if c.MinDetectionConfidence < 0 || c.MinDetectionConfidence > 1 {
		return fmt.Errorf("min detection confidence out of range: %v", c.MinDetectionConfidence)
	}
	if c.MinTrackingConfidence < 0 || c.MinTrackingConfidence > 1 {
		return fmt.Errorf("min tracking confidence out of range: %v", c.MinTrackingConfidence)
	}
	return nil
}

// Args renders the options as command-line flags for the landmark service.
func (c Config) Args() []string {
	return []string{
		"--max-hands", strconv.Itoa(c.MaxHands),
		"--model-complexity", strconv.Itoa(c.ModelComplexity),
		"--min-detection-confidence", strconv.FormatFloat(c.MinDetectionConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(c.MinTrackingConfidence, 'f', -1, 64),
	}
}
