package landmark

import (
	"encoding/json"
	"fmt"
)

// jsonHand is the wire form shared by the landmark service and browser
// clients. Points is a slice so short payloads can be rejected.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

// frameMessage is one frame of landmarks as sent over the wire.
type frameMessage struct {
	Hands     []jsonHand `json:"hands"`
	Timestamp int64      `json:"timestamp,omitempty"`
}

// DecodeFrame parses a frame payload into landmark sets.
// Every hand must carry all 21 points.
func DecodeFrame(data []byte) ([]Hand, int64, error) {
	var msg frameMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, 0, fmt.Errorf("parse frame: %w", err)
	}

	hands := make([]Hand, 0, len(msg.Hands))
	for i, h := range msg.Hands {
		lm, err := h.toHand()
		if err != nil {
			return nil, 0, fmt.Errorf("hand %d: %w", i, err)
		}
		hands = append(hands, lm)
	}
	return hands, msg.Timestamp, nil
}

// EncodeFrame is the inverse of DecodeFrame.
func EncodeFrame(hands []Hand, timestamp int64) ([]byte, error) {
	msg := frameMessage{
		Hands:     make([]jsonHand, len(hands)),
		Timestamp: timestamp,
	}
	for i, h := range hands {
		msg.Hands[i] = jsonHand{
			Points:     h.Points[:],
			Handedness: h.Handedness,
			Score:      h.Score,
		}
	}
	return json.Marshal(msg)
}

func (h jsonHand) toHand() (Hand, error) {
	if len(h.Points) < NumLandmarks {
		return Hand{}, fmt.Errorf("got %d landmarks, want %d", len(h.Points), NumLandmarks)
	}

	lm := Hand{
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	copy(lm.Points[:], h.Points[:NumLandmarks])
	return lm, nil
}
