// Package view projects a scene into a flat list of draw commands. The host
// executes them on whatever surface it renders to; nothing here draws.
package view

import (
	"encoding/json"

	"github.com/inamate/stickers/internal/geometry"
	"github.com/inamate/stickers/internal/interaction"
	"github.com/inamate/stickers/internal/scene"
)

const (
	selectionStroke = "#2563eb"
	lockedStroke    = "#9ca3af"
	handleFill      = "#ffffff"
)

// DrawCommand is a single drawing operation.
type DrawCommand struct {
	Op          string    `json:"op"`                    // "image", "outline", "handle"
	ObjectID    string    `json:"objectId,omitempty"`    // For hit correlation
	Transform   []float64 `json:"transform,omitempty"`   // [a, b, c, d, e, f] affine matrix
	ImageRef    string    `json:"imageRef,omitempty"`    // image ops
	Width       float64   `json:"width,omitempty"`       // local-space width of image/outline
	Height      float64   `json:"height,omitempty"`      // local-space height of image/outline
	X           float64   `json:"x,omitempty"`           // handle center, canvas space
	Y           float64   `json:"y,omitempty"`           // handle center, canvas space
	Radius      float64   `json:"radius,omitempty"`      // handle radius
	Handle      string    `json:"handle,omitempty"`      // handle name
	Fill        string    `json:"fill,omitempty"`        // Fill color
	Stroke      string    `json:"stroke,omitempty"`      // Stroke color
	StrokeWidth float64   `json:"strokeWidth,omitempty"` // Stroke width
	Dashed      bool      `json:"dashed,omitempty"`
}

// Frame is everything a renderer needs for one repaint.
type Frame struct {
	Canvas    geometry.Size     `json:"canvas"`
	Selection string            `json:"selection,omitempty"`
	State     interaction.State `json:"state"`
	CanUndo   bool              `json:"canUndo"`
	CanRedo   bool              `json:"canRedo"`
	Stickers  []scene.Sticker   `json:"stickers"`
	Commands  []DrawCommand     `json:"commands"`
}

// Compile generates draw commands for s in painter's order (back to front),
// followed by the selection overlay for selected if it exists.
func Compile(s *scene.Scene, selected string, style geometry.HandleStyle) []DrawCommand {
	stickers := s.Stickers()
	commands := make([]DrawCommand, 0, len(stickers)+10)

	for _, st := range stickers {
		commands = append(commands, DrawCommand{
			Op:        "image",
			ObjectID:  st.ID,
			Transform: st.Box().Matrix().ToSlice(),
			ImageRef:  st.ImageRef,
			Width:     st.Size.Width,
			Height:    st.Size.Height,
		})
	}

	st, ok := s.Get(selected)
	if !ok {
		return commands
	}
	return appendSelection(commands, st, style)
}

func appendSelection(commands []DrawCommand, st scene.Sticker, style geometry.HandleStyle) []DrawCommand {
	outline := DrawCommand{
		Op:          "outline",
		ObjectID:    st.ID,
		Transform:   st.Box().Matrix().ToSlice(),
		Width:       st.Size.Width,
		Height:      st.Size.Height,
		Stroke:      selectionStroke,
		StrokeWidth: 1,
	}
	if st.Locked {
		// Locked stickers show a passive outline and no handles.
		outline.Stroke = lockedStroke
		outline.Dashed = true
		return append(commands, outline)
	}
	commands = append(commands, outline)

	points := geometry.HandlePoints(st.Box(), style)
	for h := geometry.HandleTopLeft; h <= geometry.HandleRotate; h++ {
		p, ok := points[h]
		if !ok {
			continue
		}
		commands = append(commands, DrawCommand{
			Op:          "handle",
			ObjectID:    st.ID,
			Handle:      h.String(),
			X:           p.X,
			Y:           p.Y,
			Radius:      style.Radius / 2,
			Fill:        handleFill,
			Stroke:      selectionStroke,
			StrokeWidth: 1,
		})
	}
	return commands
}

// ToJSON serializes a frame to JSON.
func (f Frame) ToJSON() (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "{}", err
	}
	return string(data), nil
}
