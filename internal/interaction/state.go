package interaction

import (
	"fmt"

	"github.com/inamate/stickers/internal/geometry"
)

// Kind is the controller's current state.
type Kind int

const (
	Idle Kind = iota
	Selecting
	Dragging
	Resizing
	Rotating
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	case Rotating:
		return "rotating"
	}
	return "unknown"
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for c := Idle; c <= Rotating; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown interaction state %q", text)
}

// State is the controller state plus the payload of the active gesture.
type State struct {
	Kind      Kind   `json:"kind"`
	StickerID string `json:"stickerId,omitempty"`

	// Dragging
	GrabOffset geometry.Point `json:"grabOffset"`

	// Resizing
	Handle geometry.Handle `json:"handle"`
	Anchor geometry.Point  `json:"anchor"`

	// Rotating
	StartAngle float64        `json:"startAngle"`
	Pivot      geometry.Point `json:"pivot"`
}

// Gesture reports whether a drag, resize or rotate is in progress.
func (s State) Gesture() bool {
	return s.Kind == Dragging || s.Kind == Resizing || s.Kind == Rotating
}
