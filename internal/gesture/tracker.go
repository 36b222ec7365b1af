package gesture

import "github.com/VicFreyre/handraw-pipe/internal/landmark"

// State is the drawing state of the frame loop.
type State int

const (
	// StateIdle means no stroke is in progress.
	StateIdle State = iota
	// StateDrawing means a pinch is held and lastPoint is set.
	StateDrawing
)

func (s State) String() string {
	if s == StateDrawing {
		return "drawing"
	}
	return "idle"
}

// Action is what a frame asked the renderer to do.
type Action int

const (
	// ActionNone: idle and still idle.
	ActionNone Action = iota
	// ActionBegin: first pinching frame; the start point is recorded, nothing is drawn.
	ActionBegin
	// ActionContinue: pinch held; Segment is set.
	ActionContinue
	// ActionEnd: the pinch was released or the hand was lost.
	ActionEnd
)

func (a Action) String() string {
	switch a {
	case ActionBegin:
		return "begin"
	case ActionContinue:
		return "continue"
	case ActionEnd:
		return "end"
	default:
		return "none"
	}
}

// Segment is one line piece between two consecutive pinching frames.
type Segment struct {
	From Point `json:"from"`
	To   Point `json:"to"`
}

// Step is the outcome of feeding one frame to a Tracker.
type Step struct {
	Action   Action
	State    State
	Segment  *Segment // non-nil only for ActionContinue
	Reading  *Reading // nil when no hand was detected
	HandSeen bool
}

// Tracker is the frame-driven IDLE/DRAWING state machine. It holds the
// drawing state: whether the last frame pinched and the last pen position.
// A Tracker is not safe for concurrent use.
type Tracker struct {
	size      Size
	threshold float64
	lastPoint *Point
}

// NewTracker creates a Tracker for a canvas of the given size. A
// non-positive threshold selects DefaultPinchThreshold.
func NewTracker(size Size, threshold float64) *Tracker {
	if threshold <= 0 {
		threshold = DefaultPinchThreshold
	}
	return &Tracker{size: size, threshold: threshold}
}

// Step advances the state machine by one frame. Only the first hand is
// considered; an empty slice means the hand was lost.
func (t *Tracker) Step(hands []landmark.Hand) Step {
	if len(hands) == 0 {
		return t.release(Step{})
	}

	reading := Interpret(&hands[0], t.size, t.threshold)
	step := Step{Reading: &reading, HandSeen: true}

	if !reading.Pinching {
		return t.release(step)
	}

	current := reading.Index
	if t.lastPoint == nil {
		t.lastPoint = &current
		step.Action = ActionBegin
		step.State = StateDrawing
		return step
	}

	step.Segment = &Segment{From: *t.lastPoint, To: current}
	t.lastPoint = &current
	step.Action = ActionContinue
	step.State = StateDrawing
	return step
}

func (t *Tracker) release(step Step) Step {
	if t.lastPoint != nil {
		step.Action = ActionEnd
	}
	t.lastPoint = nil
	step.State = StateIdle
	return step
}

// Pinching reports whether hands would hold the pen down, without changing
// the drawing state.
func (t *Tracker) Pinching(hands []landmark.Hand) bool {
	if len(hands) == 0 {
		return false
	}
	return Interpret(&hands[0], t.size, t.threshold).Pinching
}

// Reset drops any stroke in progress so the next pinch starts fresh.
func (t *Tracker) Reset() {
	t.lastPoint = nil
}

// State reports whether a stroke is in progress.
func (t *Tracker) State() State {
	if t.lastPoint != nil {
		return StateDrawing
	}
	return StateIdle
}

// LastPoint returns the last pen position of the current stroke.
func (t *Tracker) LastPoint() (Point, bool) {
	if t.lastPoint == nil {
		return Point{}, false
	}
	return *t.lastPoint, true
}

// Size returns the canvas size landmarks are scaled to.
func (t *Tracker) Size() Size {
	return t.size
}

// Threshold returns the pinch distance in pixels.
func (t *Tracker) Threshold() float64 {
	return t.threshold
}
