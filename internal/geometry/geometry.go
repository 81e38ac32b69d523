// Package geometry holds the pure math used by the sticker scene: points,
// rectangles, rotated boxes, canvas clamping, hit testing and handle-driven
// resizing. Every function is deterministic and side-effect free.
package geometry

import "math"

// Point is a location (or vector) in canvas coordinates.
// Origin is top-left, x grows right, y grows down.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsEmpty reports whether either dimension is zero or negative.
func (s Size) IsEmpty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Rect represents an axis-aligned bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains checks if a point is inside the rect.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Center returns the center point of the rect.
func (r Rect) Center() Point {
	return Point{r.X + r.Width/2, r.Y + r.Height/2}
}

// CanvasRect returns the rect covering a canvas of the given size.
func CanvasRect(canvas Size) Rect {
	return Rect{Width: canvas.Width, Height: canvas.Height}
}

// Box is a rectangle centered on Center and rotated clockwise (y down) by
// Rotation degrees around that center.
type Box struct {
	Center   Point
	Size     Size
	Rotation float64
}

// Matrix maps box-local coordinates, where (0,0) is the unrotated top-left
// corner and (w,h) the bottom-right, into canvas coordinates.
func (b Box) Matrix() Matrix2D {
	return Translate(b.Center.X, b.Center.Y).
		Multiply(RotateDegrees(b.Rotation)).
		Multiply(Translate(-b.Size.Width/2, -b.Size.Height/2))
}

// ToLocal maps a canvas point into box-local coordinates.
func (b Box) ToLocal(p Point) Point {
	return b.Matrix().Invert().TransformPoint(p)
}

// Contains reports whether p lies inside the rotated rectangle.
func (b Box) Contains(p Point) bool {
	if b.Size.IsEmpty() {
		return false
	}
	l := b.ToLocal(p)
	return Rect{Width: b.Size.Width, Height: b.Size.Height}.Contains(l)
}

// RotatedBounds returns the axis-aligned bounding rectangle of a box,
// accounting for its rotation.
func RotatedBounds(b Box) Rect {
	return b.Matrix().TransformRect(Rect{Width: b.Size.Width, Height: b.Size.Height})
}

// NormalizeDegrees maps any finite angle into [0, 360).
func NormalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	// d+360 can round up to exactly 360 for tiny negative inputs.
	if d >= 360 {
		d = 0
	}
	return d
}

// SnapDegrees rounds d to the nearest multiple of step and normalizes it.
// A non-positive step disables snapping.
func SnapDegrees(d, step float64) float64 {
	if step <= 0 {
		return NormalizeDegrees(d)
	}
	return NormalizeDegrees(math.Round(d/step) * step)
}

// AngleDegrees returns the angle of p around pivot, in degrees, measured
// clockwise from the positive x axis (y down).
func AngleDegrees(pivot, p Point) float64 {
	return math.Atan2(p.Y-pivot.Y, p.X-pivot.X) * 180 / math.Pi
}

// Finite reports whether every value is neither NaN nor infinite.
func Finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
