package geometry

import "math"

// ResizeOptions controls ResizeWithAnchor.
type ResizeOptions struct {
	MinSize    float64
	KeepAspect bool // corner handles scale both sides by the factor of the dominant axis
}

// ResizeWithAnchor returns b resized by dragging handle h by delta (canvas
// space). The corner or edge opposite h stays fixed in canvas space, and each
// dimension is floored at MinSize. Non-resize handles return b unchanged.
func ResizeWithAnchor(b Box, h Handle, delta Point, opts ResizeOptions) Box {
	if !h.IsResize() {
		return b
	}
	sx, sy := h.signs()
	rot := RotateDegrees(b.Rotation)
	local := RotateDegrees(-b.Rotation).TransformVector(delta)

	w, ht := b.Size.Width, b.Size.Height
	newW, newH := w, ht
	if sx != 0 {
		newW = w + sx*local.X
	}
	if sy != 0 {
		newH = ht + sy*local.Y
	}

	if opts.KeepAspect && h.IsCorner() && w > 0 && ht > 0 {
		// The axis that moved further, relative to its size, drives the scale.
		kx, ky := newW/w, newH/ht
		k := kx
		if math.Abs(ky-1) > math.Abs(kx-1) {
			k = ky
		}
		if opts.MinSize > 0 {
			k = math.Max(k, opts.MinSize/math.Min(w, ht))
		}
		newW, newH = w*k, ht*k
	} else {
		newW = math.Max(newW, opts.MinSize)
		newH = math.Max(newH, opts.MinSize)
	}

	// The center follows the moving side; the anchor stays put.
	center := Anchor(b, h).Add(rot.TransformVector(Point{sx * newW / 2, sy * newH / 2}))

	return Box{Center: center, Size: Size{Width: newW, Height: newH}, Rotation: b.Rotation}
}

// Anchor returns the canvas point that stays fixed while h is dragged.
func Anchor(b Box, h Handle) Point {
	sx, sy := h.signs()
	rot := RotateDegrees(b.Rotation)
	return b.Center.Add(rot.TransformVector(Point{-sx * b.Size.Width / 2, -sy * b.Size.Height / 2}))
}
