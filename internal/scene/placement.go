package scene

import (
	"math"

	"github.com/inamate/stickers/internal/geometry"
)

// place turns a proposed transform into one that satisfies the scene
// invariants: rotation normalized, size floored and fitted, position clamped.
func (s *Scene) place(t Transform) Transform {
	t.Rotation = geometry.NormalizeDegrees(t.Rotation)
	t.Size.Width = math.Max(t.Size.Width, s.opts.MinSize)
	t.Size.Height = math.Max(t.Size.Height, s.opts.MinSize)
	t.Size = s.fitSize(t.Size, t.Rotation)

	box := geometry.Box{Center: t.Position, Size: t.Size, Rotation: t.Rotation}
	bounds := geometry.RotatedBounds(box)
	clamped := geometry.ClampWithOverlap(bounds, s.canvas, s.opts.MinOverlap)
	t.Position = t.Position.Add(clamped.Center().Sub(bounds.Center()))
	return t
}

// fitSize shrinks size until its rotated bounds can be placed on the canvas.
// It scales uniformly first; if that pushes one side under MinSize, that side
// is pinned at MinSize and the other is solved against both axes.
func (s *Scene) fitSize(size geometry.Size, rotation float64) geometry.Size {
	maxW := geometry.MaxExtent(s.canvas.Width, s.opts.MinOverlap)
	maxH := geometry.MaxExtent(s.canvas.Height, s.opts.MinOverlap)

	rad := rotation * math.Pi / 180
	c, sn := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	bw := size.Width*c + size.Height*sn
	bh := size.Width*sn + size.Height*c
	if bw <= maxW && bh <= maxH {
		return size
	}

	k := math.Min(maxW/bw, maxH/bh)
	w, h := size.Width*k, size.Height*k
	minSize := s.opts.MinSize

	switch {
	case w >= minSize && h >= minSize:
	case w < minSize && h < minSize:
		w, h = minSize, minSize
	case h < minSize:
		h = minSize
		w = math.Max(solveSide(h, c, sn, maxW, maxH), minSize)
	default:
		w = minSize
		h = math.Max(solveSide(w, sn, c, maxW, maxH), minSize)
	}
	return geometry.Size{Width: w, Height: h}
}

// solveSide returns the largest x with x*a + pinned*b <= maxW and
// x*b + pinned*a <= maxH.
func solveSide(pinned, a, b, maxW, maxH float64) float64 {
	const tiny = 1e-12
	x := math.Inf(1)
	if a > tiny {
		x = math.Min(x, (maxW-pinned*b)/a)
	}
	if b > tiny {
		x = math.Min(x, (maxH-pinned*a)/b)
	}
	return x
}
