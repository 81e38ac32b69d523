package scene

import "fmt"

// Reorder moves a sticker within the layer stack and repacks zIndex values.
// It reports whether the order changed; moving the top sticker to the front
// is a successful no-op.
func (s *Scene) Reorder(id string, dir Direction) (bool, error) {
	st, ok := s.byID[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	from := st.ZIndex
	last := len(s.stickers) - 1
	var to int
	switch dir {
	case Front:
		to = last
	case Back:
		to = 0
	case Forward:
		to = min(from+1, last)
	case Backward:
		to = max(from-1, 0)
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}
	if to == from {
		return false, nil
	}

	moved := s.stickers[from]
	if to > from {
		copy(s.stickers[from:to], s.stickers[from+1:to+1])
	} else {
		copy(s.stickers[to+1:from+1], s.stickers[to:from])
	}
	s.stickers[to] = moved
	s.repack()
	return true, nil
}

// ParseDirection converts a wire name into a Direction.
func ParseDirection(name string) (Direction, error) {
	switch d := Direction(name); d {
	case Front, Back, Forward, Backward:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, name)
}
