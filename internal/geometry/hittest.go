package geometry

import (
	"fmt"
	"math"
)

// Candidate is one hit-testable box tagged with an owner id.
type Candidate struct {
	ID  string
	Box Box
}

// HitTest returns the id of the first candidate whose rotated rectangle
// contains p. Candidates must be ordered topmost first, so ties resolve to
// the highest layer.
func HitTest(p Point, candidates []Candidate) (string, bool) {
	for _, c := range candidates {
		if c.Box.Contains(p) {
			return c.ID, true
		}
	}
	return "", false
}

// Handle identifies a manipulation handle on a selected box.
type Handle int

const (
	HandleNone Handle = iota
	HandleTopLeft
	HandleTop
	HandleTopRight
	HandleRight
	HandleBottomRight
	HandleBottom
	HandleBottomLeft
	HandleLeft
	HandleRotate
)

var handleNames = [...]string{
	HandleNone:        "none",
	HandleTopLeft:     "top-left",
	HandleTop:         "top",
	HandleTopRight:    "top-right",
	HandleRight:       "right",
	HandleBottomRight: "bottom-right",
	HandleBottom:      "bottom",
	HandleBottomLeft:  "bottom-left",
	HandleLeft:        "left",
	HandleRotate:      "rotate",
}

func (h Handle) String() string {
	if h < 0 || int(h) >= len(handleNames) {
		return "unknown"
	}
	return handleNames[h]
}

// MarshalText encodes the handle by name.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Handle) UnmarshalText(text []byte) error {
	for i, name := range handleNames {
		if name == string(text) {
			*h = Handle(i)
			return nil
		}
	}
	return fmt.Errorf("unknown handle %q", text)
}

// IsResize reports whether h is one of the eight resize handles.
func (h Handle) IsResize() bool {
	return h >= HandleTopLeft && h <= HandleLeft
}

// IsCorner reports whether h is a corner resize handle.
func (h Handle) IsCorner() bool {
	switch h {
	case HandleTopLeft, HandleTopRight, HandleBottomRight, HandleBottomLeft:
		return true
	}
	return false
}

// signs returns the direction of the handle from the box center in box-local
// axes: -1 for left/top, +1 for right/bottom, 0 for the middle.
func (h Handle) signs() (sx, sy float64) {
	switch h {
	case HandleTopLeft:
		return -1, -1
	case HandleTop:
		return 0, -1
	case HandleTopRight:
		return 1, -1
	case HandleRight:
		return 1, 0
	case HandleBottomRight:
		return 1, 1
	case HandleBottom:
		return 0, 1
	case HandleBottomLeft:
		return -1, 1
	case HandleLeft:
		return -1, 0
	}
	return 0, 0
}

// HandleStyle describes where handles sit and how large their hit area is.
type HandleStyle struct {
	Radius       float64 // hit radius around each handle point
	RotateOffset float64 // distance of the rotate handle above the top edge
}

// HandlePoints returns the canvas position of every handle of b.
func HandlePoints(b Box, style HandleStyle) map[Handle]Point {
	m := b.Matrix()
	w, h := b.Size.Width, b.Size.Height
	points := make(map[Handle]Point, 9)
	for hd := HandleTopLeft; hd <= HandleLeft; hd++ {
		sx, sy := hd.signs()
		points[hd] = m.TransformPoint(Point{w/2 + sx*w/2, h/2 + sy*h/2})
	}
	points[HandleRotate] = m.TransformPoint(Point{w / 2, -style.RotateOffset})
	return points
}

// HandleAt returns the handle of b under p, or HandleNone. The rotate handle
// wins over resize handles, and corners win over edges.
func HandleAt(b Box, p Point, style HandleStyle) Handle {
	if style.Radius <= 0 {
		return HandleNone
	}
	l := b.ToLocal(p)
	w, h := b.Size.Width, b.Size.Height

	near := func(x, y float64) bool {
		return math.Hypot(l.X-x, l.Y-y) <= style.Radius
	}

	if near(w/2, -style.RotateOffset) {
		return HandleRotate
	}
	for _, hd := range []Handle{HandleTopLeft, HandleTopRight, HandleBottomRight, HandleBottomLeft, HandleTop, HandleRight, HandleBottom, HandleLeft} {
		sx, sy := hd.signs()
		if near(w/2+sx*w/2, h/2+sy*h/2) {
			return hd
		}
	}
	return HandleNone
}
