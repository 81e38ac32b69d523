// Package serialize converts a Scene to and from its versioned JSON form, the
// payload attached to checkout line items and used to restore a session.
//
// Positions and sizes are stored as fractions of the canvas width and height
// so the payload does not depend on the preview resolution.
package serialize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/inamate/stickers/internal/geometry"
	"github.com/inamate/stickers/internal/scene"
)

// Version is the only schema version this package reads and writes.
const Version = 1

var (
	ErrInvalidFormat = errors.New("invalid scene format")
	ErrInvalidData   = errors.New("invalid scene data")
)

// Document is the serialized scene.
type Document struct {
	Version  int           `json:"version"`
	Canvas   geometry.Size `json:"canvas"`
	Stickers []Record      `json:"stickers"`
}

// Record is one serialized sticker. X and Y locate the center; X and Width
// are fractions of the canvas width, Y and Height of the canvas height.
type Record struct {
	ID       string  `json:"id"`
	ImageRef string  `json:"imageRef"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	ZIndex   int     `json:"zIndex"`
	Locked   bool    `json:"locked,omitempty"`
}

// Validate checks the fields of one record that do not depend on the
// canvas or on the other records.
func (r Record) Validate() error {
	switch {
	case r.ImageRef == "":
		return fmt.Errorf("%w: sticker %q has no image reference", ErrInvalidData, r.ID)
	case !geometry.Finite(r.X, r.Y, r.Width, r.Height, r.Rotation):
		return fmt.Errorf("%w: sticker %q has non-finite placement", ErrInvalidData, r.ID)
	case r.Width <= 0 || r.Height <= 0:
		return fmt.Errorf("%w: sticker %q size %vx%v", ErrInvalidData, r.ID, r.Width, r.Height)
	case r.Rotation < 0 || r.Rotation >= 360:
		return fmt.Errorf("%w: sticker %q rotation %v outside [0,360)", ErrInvalidData, r.ID, r.Rotation)
	}
	return nil
}

// Spec lays the record out on a canvas as a sticker to add.
func (r Record) Spec(canvas geometry.Size) scene.StickerSpec {
	return scene.StickerSpec{
		ID:       r.ID,
		ImageRef: r.ImageRef,
		Position: geometry.Point{X: r.X * canvas.Width, Y: r.Y * canvas.Height},
		Size:     geometry.Size{Width: r.Width * canvas.Width, Height: r.Height * canvas.Height},
		Rotation: r.Rotation,
		Locked:   r.Locked,
	}
}

// Ordered returns the records sorted by zIndex, bottom first.
func (d Document) Ordered() []Record {
	out := make([]Record, len(d.Stickers))
	copy(out, d.Stickers)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}

// Serialize projects s into a Document. The result depends only on the
// scene's current contents.
func Serialize(s *scene.Scene) Document {
	canvas := s.Canvas()
	stickers := s.Stickers()
	doc := Document{
		Version:  Version,
		Canvas:   canvas,
		Stickers: make([]Record, 0, len(stickers)),
	}
	for _, st := range stickers {
		doc.Stickers = append(doc.Stickers, Record{
			ID:       st.ID,
			ImageRef: st.ImageRef,
			X:        st.Position.X / canvas.Width,
			Y:        st.Position.Y / canvas.Height,
			Width:    st.Size.Width / canvas.Width,
			Height:   st.Size.Height / canvas.Height,
			Rotation: st.Rotation,
			ZIndex:   st.ZIndex,
			Locked:   st.Locked,
		})
	}
	sort.SliceStable(doc.Stickers, func(i, j int) bool {
		return doc.Stickers[i].ZIndex < doc.Stickers[j].ZIndex
	})
	return doc
}

// Marshal serializes s to JSON.
func Marshal(s *scene.Scene) ([]byte, error) {
	return json.Marshal(Serialize(s))
}

// Unmarshal parses data into a Document without validating its contents.
func Unmarshal(data []byte) (Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if dec.More() {
		return Document{}, fmt.Errorf("%w: trailing data", ErrInvalidFormat)
	}
	if doc.Version != Version {
		return Document{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidFormat, doc.Version)
	}
	return doc, nil
}

// Deserialize rebuilds a Scene from JSON. Every sticker is re-validated;
// any violation rejects the whole payload. Ids are preserved.
func Deserialize(data []byte, opts scene.Options) (*scene.Scene, error) {
	doc, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return doc.Scene(opts)
}

// Scene rebuilds a Scene from the document.
func (d Document) Scene(opts scene.Options) (*scene.Scene, error) {
	if d.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidFormat, d.Version)
	}
	canvas := d.Canvas
	if !geometry.Finite(canvas.Width, canvas.Height) || canvas.IsEmpty() {
		return nil, fmt.Errorf("%w: canvas %vx%v", ErrInvalidData, canvas.Width, canvas.Height)
	}

	stickers := make([]scene.Sticker, len(d.Stickers))
	for i, r := range d.Stickers {
		spec := r.Spec(canvas)
		stickers[i] = scene.Sticker{
			ID:       spec.ID,
			ImageRef: spec.ImageRef,
			Position: spec.Position,
			Size:     spec.Size,
			Rotation: spec.Rotation,
			ZIndex:   r.ZIndex,
			Locked:   spec.Locked,
		}
	}

	s, err := scene.Load(canvas, opts, stickers)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return s, nil
}
