package model

import "fmt"

// Direction is one of two directions on a frame.
type Direction int

const (
	// DirectionIncoming marks received frames.
	DirectionIncoming = Direction(iota)

	// DirectionOutgoing marks frames to be sent.
	DirectionOutgoing
)

var _ fmt.Stringer = Direction(0)

// String implements fmt.Stringer
func (d Direction) String() string {
	switch d {
	case DirectionIncoming:
		return "recv"
	case DirectionOutgoing:
		return "send"
	default:
		return "undefined"
	}
}
