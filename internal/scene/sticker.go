package scene

import "github.com/inamate/stickers/internal/geometry"

// Sticker is one placed graphic. Values returned by the Scene are copies;
// mutating them has no effect on the Scene.
type Sticker struct {
	ID       string         `json:"id"`
	ImageRef string         `json:"imageRef"`
	Position geometry.Point `json:"position"` // center, canvas coordinates
	Size     geometry.Size  `json:"size"`
	Rotation float64        `json:"rotation"` // degrees, [0, 360)
	ZIndex   int            `json:"zIndex"`
	Locked   bool           `json:"locked"`
}

// Box returns the sticker's rotated rectangle.
func (s Sticker) Box() geometry.Box {
	return geometry.Box{Center: s.Position, Size: s.Size, Rotation: s.Rotation}
}

// Bounds returns the axis-aligned bounds of the rotated sticker.
func (s Sticker) Bounds() geometry.Rect {
	return geometry.RotatedBounds(s.Box())
}

// Transform returns the sticker's current placement.
func (s Sticker) Transform() Transform {
	return Transform{Position: s.Position, Size: s.Size, Rotation: s.Rotation}
}

// StickerSpec describes a sticker to add. ID is optional; when empty the
// Scene generates one.
type StickerSpec struct {
	ID       string         `json:"id,omitempty"`
	ImageRef string         `json:"imageRef"`
	Position geometry.Point `json:"position"`
	Size     geometry.Size  `json:"size"`
	Rotation float64        `json:"rotation"`
	Locked   bool           `json:"locked"`
}

// Transform is a sticker placement: center, size and rotation.
type Transform struct {
	Position geometry.Point `json:"position"`
	Size     geometry.Size  `json:"size"`
	Rotation float64        `json:"rotation"`
}

// TransformRequest proposes new placement values. Nil fields keep the
// sticker's current value.
type TransformRequest struct {
	Position *geometry.Point
	Size     *geometry.Size
	Rotation *float64
}

// Direction is a layering move for Reorder.
type Direction string

const (
	Front    Direction = "front"
	Back     Direction = "back"
	Forward  Direction = "forward"
	Backward Direction = "backward"
)
