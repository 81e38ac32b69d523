package geometry

import "math"

// ClampIntoCanvas translates r so it lies fully inside the canvas. It never
// resizes: along an axis where r is larger than the canvas, r is centered.
func ClampIntoCanvas(r Rect, canvas Size) Rect {
	return ClampWithOverlap(r, canvas, 1)
}

// ClampWithOverlap translates r so that, along each axis, at least fraction
// of its extent lies inside the canvas. fraction is expected in (0, 1].
func ClampWithOverlap(r Rect, canvas Size, fraction float64) Rect {
	return Rect{
		X:      clampAxis(r.X, r.Width, canvas.Width, fraction),
		Y:      clampAxis(r.Y, r.Height, canvas.Height, fraction),
		Width:  r.Width,
		Height: r.Height,
	}
}

func clampAxis(pos, extent, limit, fraction float64) float64 {
	slack := (1 - fraction) * extent
	lo := -slack
	hi := limit - extent + slack
	if lo > hi {
		return (limit - extent) / 2
	}
	return math.Min(math.Max(pos, lo), hi)
}

// MaxExtent is the largest extent along one axis that can still satisfy the
// overlap fraction on a canvas dimension of limit. It is +Inf when any
// extent can be placed.
func MaxExtent(limit, fraction float64) float64 {
	if fraction <= 0.5 {
		return math.Inf(1)
	}
	return limit / (2*fraction - 1)
}

// WithinOverlap reports whether r satisfies the overlap fraction against the
// canvas along both axes, allowing eps of floating-point slack.
func WithinOverlap(r Rect, canvas Size, fraction, eps float64) bool {
	return axisWithin(r.X, r.Width, canvas.Width, fraction, eps) &&
		axisWithin(r.Y, r.Height, canvas.Height, fraction, eps)
}

func axisWithin(pos, extent, limit, fraction, eps float64) bool {
	slack := (1 - fraction) * extent
	return pos >= -slack-eps && pos+extent <= limit+slack+eps
}
