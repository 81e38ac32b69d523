// Package scene is the authoritative in-memory model of stickers placed on a
// bounded canvas. Every mutation is atomic: it either leaves the scene fully
// consistent or returns an error without changing anything.
//
// After every mutation:
//   - each sticker's rotated bounds satisfy the overlap rule against the canvas
//   - each sticker is at least MinSize wide and high
//   - zIndex values are exactly 0..N-1
//   - rotation is in [0, 360)
//   - ids are unique and never handed out twice
package scene

import (
	"fmt"
	"math"

	"github.com/inamate/stickers/internal/geometry"
	"github.com/inamate/stickers/internal/typeid"
)

const (
	DefaultMinSize    = 20.0
	DefaultMinOverlap = 1.0

	// tolerance for invariant checks on values that went through float
	// arithmetic outside the scene (normalization, JSON).
	eps = 1e-6
)

// Options configures a Scene.
type Options struct {
	MinSize     float64       // size floor for both dimensions
	MinOverlap  float64       // per-axis fraction of bounds kept on canvas, (0, 1]
	MaxStickers int           // 0 means unlimited
	NewID       func() string // id generator, defaults to typeid "stk_..."
}

func (o Options) withDefaults() Options {
	if o.MinSize == 0 {
		o.MinSize = DefaultMinSize
	}
	if o.MinOverlap == 0 {
		o.MinOverlap = DefaultMinOverlap
	}
	if o.NewID == nil {
		o.NewID = typeid.NewStickerID
	}
	return o
}

// Scene is an ordered collection of stickers on a canvas. It is not safe for
// concurrent use; callers drive it from a single event loop.
type Scene struct {
	canvas   geometry.Size
	opts     Options
	stickers []*Sticker // index == ZIndex
	byID     map[string]*Sticker
	retired  map[string]struct{}
}

// New creates an empty scene on a canvas of the given size.
func New(canvas geometry.Size, opts Options) (*Scene, error) {
	opts = opts.withDefaults()

	if !geometry.Finite(opts.MinSize, opts.MinOverlap) || opts.MinSize <= 0 {
		return nil, fmt.Errorf("%w: min size %v", ErrInvalidCanvas, opts.MinSize)
	}
	if opts.MinOverlap <= 0 || opts.MinOverlap > 1 {
		return nil, fmt.Errorf("%w: min overlap %v outside (0, 1]", ErrInvalidCanvas, opts.MinOverlap)
	}
	if !geometry.Finite(canvas.Width, canvas.Height) || canvas.IsEmpty() {
		return nil, fmt.Errorf("%w: %vx%v", ErrInvalidCanvas, canvas.Width, canvas.Height)
	}
	// A MinSize square must fit at any rotation.
	need := opts.MinSize * math.Sqrt2
	if geometry.MaxExtent(canvas.Width, opts.MinOverlap) < need || geometry.MaxExtent(canvas.Height, opts.MinOverlap) < need {
		return nil, fmt.Errorf("%w: %vx%v too small for min size %v", ErrInvalidCanvas, canvas.Width, canvas.Height, opts.MinSize)
	}

	return &Scene{
		canvas:  canvas,
		opts:    opts,
		byID:    make(map[string]*Sticker),
		retired: make(map[string]struct{}),
	}, nil
}

// Canvas returns the canvas size.
func (s *Scene) Canvas() geometry.Size { return s.canvas }

// Options returns the options the scene was created with, defaults applied.
func (s *Scene) Options() Options { return s.opts }

// Len returns the number of stickers.
func (s *Scene) Len() int { return len(s.stickers) }

// Get returns a copy of the sticker with the given id.
func (s *Scene) Get(id string) (Sticker, bool) {
	st, ok := s.byID[id]
	if !ok {
		return Sticker{}, false
	}
	return *st, true
}

// Stickers returns copies of all stickers ordered by zIndex, bottom first.
func (s *Scene) Stickers() []Sticker {
	out := make([]Sticker, len(s.stickers))
	for i, st := range s.stickers {
		out[i] = *st
	}
	return out
}

// HitTest returns the id of the topmost sticker whose rotated rectangle
// contains p.
func (s *Scene) HitTest(p geometry.Point) (string, bool) {
	candidates := make([]geometry.Candidate, 0, len(s.stickers))
	for i := len(s.stickers) - 1; i >= 0; i-- {
		st := s.stickers[i]
		candidates = append(candidates, geometry.Candidate{ID: st.ID, Box: st.Box()})
	}
	return geometry.HitTest(p, candidates)
}

// Add places a new sticker on top of the stack and returns its id. The
// placement is clamped into the canvas; sizes below MinSize are floored.
func (s *Scene) Add(spec StickerSpec) (string, error) {
	if s.opts.MaxStickers > 0 && len(s.stickers) >= s.opts.MaxStickers {
		return "", fmt.Errorf("%w: limit %d", ErrCapacityExceeded, s.opts.MaxStickers)
	}
	if spec.ImageRef == "" {
		return "", fmt.Errorf("%w: missing image reference", ErrInvalidSticker)
	}
	if !geometry.Finite(spec.Position.X, spec.Position.Y, spec.Size.Width, spec.Size.Height, spec.Rotation) {
		return "", fmt.Errorf("%w: non-finite placement", ErrInvalidSticker)
	}
	if spec.Size.IsEmpty() {
		return "", fmt.Errorf("%w: size %vx%v", ErrInvalidSticker, spec.Size.Width, spec.Size.Height)
	}

	id := spec.ID
	if id == "" {
		// Imported scenes may already hold ids the generator would produce.
		id = s.opts.NewID()
		for i := 0; i < 16 && s.idTaken(id); i++ {
			id = s.opts.NewID()
		}
	}
	if s.idTaken(id) {
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	t := s.place(Transform{Position: spec.Position, Size: spec.Size, Rotation: spec.Rotation})
	st := &Sticker{
		ID:       id,
		ImageRef: spec.ImageRef,
		Position: t.Position,
		Size:     t.Size,
		Rotation: t.Rotation,
		ZIndex:   len(s.stickers),
		Locked:   spec.Locked,
	}
	s.stickers = append(s.stickers, st)
	s.byID[id] = st
	return id, nil
}

// Remove deletes a sticker and repacks the remaining zIndex values.
func (s *Scene) Remove(id string) error {
	st, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.stickers = append(s.stickers[:st.ZIndex], s.stickers[st.ZIndex+1:]...)
	delete(s.byID, id)
	s.retired[id] = struct{}{}
	s.repack()
	return nil
}

// UpdateTransform applies a proposed placement to an unlocked sticker and
// returns the placement actually applied, which differs from the proposal
// when clamping was needed.
func (s *Scene) UpdateTransform(id string, req TransformRequest) (Transform, error) {
	st, ok := s.byID[id]
	if !ok {
		return Transform{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if st.Locked {
		return Transform{}, fmt.Errorf("%w: %s", ErrLocked, id)
	}

	t := st.Transform()
	if req.Position != nil {
		if !geometry.Finite(req.Position.X, req.Position.Y) {
			return Transform{}, fmt.Errorf("%w: position", ErrInvalidTransform)
		}
		t.Position = *req.Position
	}
	if req.Size != nil {
		if !geometry.Finite(req.Size.Width, req.Size.Height) || req.Size.IsEmpty() {
			return Transform{}, fmt.Errorf("%w: size", ErrInvalidTransform)
		}
		t.Size = *req.Size
	}
	if req.Rotation != nil {
		if !geometry.Finite(*req.Rotation) {
			return Transform{}, fmt.Errorf("%w: rotation", ErrInvalidTransform)
		}
		t.Rotation = *req.Rotation
	}

	t = s.place(t)
	st.Position, st.Size, st.Rotation = t.Position, t.Size, t.Rotation
	return t, nil
}

// SetLocked locks or unlocks a sticker.
func (s *Scene) SetLocked(id string, locked bool) error {
	st, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	st.Locked = locked
	return nil
}

func (s *Scene) idTaken(id string) bool {
	if _, ok := s.byID[id]; ok {
		return true
	}
	_, ok := s.retired[id]
	return ok
}

func (s *Scene) repack() {
	for i, st := range s.stickers {
		st.ZIndex = i
	}
}
