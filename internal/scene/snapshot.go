package scene

import (
	"fmt"
	"math"

	"github.com/inamate/stickers/internal/geometry"
)

// Snapshot is an immutable copy of the scene's stickers.
type Snapshot struct {
	stickers []Sticker
}

// Stickers returns a copy of the captured stickers, bottom first.
func (sn Snapshot) Stickers() []Sticker {
	out := make([]Sticker, len(sn.stickers))
	copy(out, sn.stickers)
	return out
}

// Len returns the number of captured stickers.
func (sn Snapshot) Len() int { return len(sn.stickers) }

// Equal reports whether two snapshots hold identical stickers in the same order.
func (sn Snapshot) Equal(other Snapshot) bool {
	if len(sn.stickers) != len(other.stickers) {
		return false
	}
	for i := range sn.stickers {
		if sn.stickers[i] != other.stickers[i] {
			return false
		}
	}
	return true
}

// Snapshot captures the current stickers.
func (s *Scene) Snapshot() Snapshot {
	return Snapshot{stickers: s.Stickers()}
}

// Restore atomically replaces the scene's stickers with a snapshot taken from
// this scene. Ids dropped by the restore are retired.
func (s *Scene) Restore(sn Snapshot) {
	next := make([]*Sticker, len(sn.stickers))
	byID := make(map[string]*Sticker, len(sn.stickers))
	for i := range sn.stickers {
		st := sn.stickers[i]
		next[i] = &st
		byID[st.ID] = &st
	}
	for id := range s.byID {
		if _, ok := byID[id]; !ok {
			s.retired[id] = struct{}{}
		}
	}
	s.stickers = next
	s.byID = byID
}

// Load builds a scene from externally supplied stickers, rejecting anything
// that violates the scene invariants instead of clamping it. Values within a
// small float tolerance of a bound are snapped onto it.
func Load(canvas geometry.Size, opts Options, stickers []Sticker) (*Scene, error) {
	s, err := New(canvas, opts)
	if err != nil {
		return nil, err
	}

	if s.opts.MaxStickers > 0 && len(stickers) > s.opts.MaxStickers {
		return nil, fmt.Errorf("%w: %d stickers, limit %d", ErrCapacityExceeded, len(stickers), s.opts.MaxStickers)
	}

	ordered := make([]*Sticker, len(stickers))
	for i := range stickers {
		st := stickers[i]
		if st.ZIndex < 0 || st.ZIndex >= len(stickers) {
			return nil, fmt.Errorf("%w: sticker %q zIndex %d outside [0,%d)", ErrInvalidState, st.ID, st.ZIndex, len(stickers))
		}
		if ordered[st.ZIndex] != nil {
			return nil, fmt.Errorf("%w: duplicate zIndex %d", ErrInvalidState, st.ZIndex)
		}
		if st.ID == "" {
			return nil, fmt.Errorf("%w: sticker at zIndex %d has no id", ErrInvalidState, st.ZIndex)
		}
		if _, dup := s.byID[st.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, st.ID)
		}
		if err := s.checkSticker(st); err != nil {
			return nil, err
		}

		st.Size.Width = math.Max(st.Size.Width, s.opts.MinSize)
		st.Size.Height = math.Max(st.Size.Height, s.opts.MinSize)
		bounds := st.Bounds()
		clamped := geometry.ClampWithOverlap(bounds, s.canvas, s.opts.MinOverlap)
		st.Position = st.Position.Add(clamped.Center().Sub(bounds.Center()))

		ordered[st.ZIndex] = &st
		s.byID[st.ID] = &st
	}
	s.stickers = ordered
	return s, nil
}

// CheckInvariants verifies every scene invariant and returns the first
// violation found.
func (s *Scene) CheckInvariants() error {
	seen := make(map[string]struct{}, len(s.stickers))
	for i, st := range s.stickers {
		if st.ZIndex != i {
			return fmt.Errorf("%w: sticker %q at position %d has zIndex %d", ErrInvalidState, st.ID, i, st.ZIndex)
		}
		if _, dup := seen[st.ID]; dup || st.ID == "" {
			return fmt.Errorf("%w: %q", ErrDuplicateID, st.ID)
		}
		seen[st.ID] = struct{}{}
		if s.byID[st.ID] != st {
			return fmt.Errorf("%w: index out of sync for %q", ErrInvalidState, st.ID)
		}
		if err := s.checkSticker(*st); err != nil {
			return err
		}
	}
	if len(s.byID) != len(s.stickers) {
		return fmt.Errorf("%w: %d indexed, %d ordered", ErrInvalidState, len(s.byID), len(s.stickers))
	}
	return nil
}

func (s *Scene) checkSticker(st Sticker) error {
	if st.ImageRef == "" {
		return fmt.Errorf("%w: sticker %q has no image reference", ErrInvalidState, st.ID)
	}
	if !geometry.Finite(st.Position.X, st.Position.Y, st.Size.Width, st.Size.Height, st.Rotation) {
		return fmt.Errorf("%w: sticker %q has non-finite placement", ErrInvalidState, st.ID)
	}
	if st.Size.Width < s.opts.MinSize-eps || st.Size.Height < s.opts.MinSize-eps {
		return fmt.Errorf("%w: sticker %q size %vx%v below %v", ErrInvalidState, st.ID, st.Size.Width, st.Size.Height, s.opts.MinSize)
	}
	if st.Rotation < 0 || st.Rotation >= 360 {
		return fmt.Errorf("%w: sticker %q rotation %v outside [0,360)", ErrInvalidState, st.ID, st.Rotation)
	}
	if !geometry.WithinOverlap(st.Bounds(), s.canvas, s.opts.MinOverlap, eps) {
		return fmt.Errorf("%w: sticker %q out of canvas bounds", ErrInvalidState, st.ID)
	}
	return nil
}
