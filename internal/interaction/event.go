package interaction

import (
	"fmt"

	"github.com/inamate/stickers/internal/geometry"
)

// EventType names an input event. Values match DOM event names so host
// bridges can forward events unchanged.
type EventType string

const (
	EventPointerDown   EventType = "pointerdown"
	EventPointerMove   EventType = "pointermove"
	EventPointerUp     EventType = "pointerup"
	EventPointerCancel EventType = "pointercancel"
	EventPointerLeave  EventType = "pointerleave"
	EventKeyDown       EventType = "keydown"
)

// Modifiers is the keyboard modifier state at the time of an event. JSON
// names follow the DOM event properties.
type Modifiers struct {
	Shift bool `json:"shiftKey,omitempty"`
	Ctrl  bool `json:"ctrlKey,omitempty"`
	Meta  bool `json:"metaKey,omitempty"`
	Alt   bool `json:"altKey,omitempty"`
}

// Event is a raw pointer or keyboard event in canvas coordinates.
type Event struct {
	Type EventType `json:"type"`
	X    float64   `json:"x,omitempty"`
	Y    float64   `json:"y,omitempty"`
	Key  string    `json:"key,omitempty"` // KeyboardEvent.key
	Modifiers
}

// Point returns the event position.
func (e Event) Point() geometry.Point {
	return geometry.Point{X: e.X, Y: e.Y}
}

// Key names understood by KeyDown.
const (
	KeyArrowLeft  = "ArrowLeft"
	KeyArrowRight = "ArrowRight"
	KeyArrowUp    = "ArrowUp"
	KeyArrowDown  = "ArrowDown"
	KeyDelete     = "Delete"
	KeyBackspace  = "Backspace"
	KeyEscape     = "Escape"
)

// Handle dispatches an event to the matching transition. It reports whether
// the scene or the selection changed.
func (c *Controller) Handle(ev Event) (bool, error) {
	if !geometry.Finite(ev.X, ev.Y) {
		return false, fmt.Errorf("%w: non-finite coordinates", ErrInvalidEvent)
	}
	switch ev.Type {
	case EventPointerDown:
		return c.PointerDown(ev.Point(), ev.Modifiers), nil
	case EventPointerMove:
		return c.PointerMove(ev.Point(), ev.Modifiers), nil
	case EventPointerUp:
		return c.PointerUp(ev.Point(), ev.Modifiers), nil
	case EventPointerCancel:
		return c.PointerCancel(ev.Point(), ev.Modifiers), nil
	case EventPointerLeave:
		return c.PointerLeave(), nil
	case EventKeyDown:
		return c.KeyDown(ev.Key, ev.Modifiers), nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidEvent, ev.Type)
}
