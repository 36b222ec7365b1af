package landmark

// OpenHand returns a right hand with all fingers extended and the
// index fingertip at (x, y) in normalized coordinates. Thumb and index tips
// are far apart.
func OpenHand(x, y float64) Hand {
	landmarks := Hand{
		Handedness: "Right",
		Score:      0.95,
	}

	// Offsets relative to the index fingertip.
	offsets := [NumLandmarks][2]float64{
		Wrist:     {-0.08, 0.45},
		ThumbCMC:  {-0.03, 0.40},
		ThumbMCP:  {0.04, 0.35},
		ThumbIP:   {0.10, 0.30},
		ThumbTip:  {0.15, 0.25},
		IndexMCP:  {-0.03, 0.33},
		IndexPIP:  {-0.01, 0.20},
		IndexDIP:  {0.00, 0.10},
		IndexTip:  {0.00, 0.00},
		MiddleMCP: {-0.08, 0.31},
		MiddlePIP: {-0.08, 0.17},
		MiddleDIP: {-0.08, 0.05},
		MiddleTip: {-0.08, -0.07},
		RingMCP:   {-0.13, 0.33},
		RingPIP:   {-0.15, 0.20},
		RingDIP:   {-0.16, 0.10},
		RingTip:   {-0.16, 0.00},
		PinkyMCP:  {-0.18, 0.35},
		PinkyPIP:  {-0.21, 0.25},
		PinkyDIP:  {-0.23, 0.15},
		PinkyTip:  {-0.24, 0.07},
	}
	for i, o := range offsets {
		landmarks.Points[i] = Point3D{X: x + o[0], Y: y + o[1]}
	}

	return landmarks
}

// Pinch returns a hand whose index fingertip sits at (x, y) with the
// thumb tip touching it, offset by gap along X (normalized units).
func Pinch(x, y, gap float64) Hand {
	landmarks := OpenHand(x, y)

	landmarks.Points[ThumbIP] = Point3D{X: x + gap + 0.03, Y: y + 0.08}
	landmarks.Points[ThumbTip] = Point3D{X: x + gap, Y: y}

	return landmarks
}
