package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/inamate/stickers/internal/checkout"
	"github.com/inamate/stickers/internal/geometry"
	"github.com/inamate/stickers/internal/interaction"
	"github.com/inamate/stickers/internal/scene"
	"github.com/inamate/stickers/internal/serialize"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	n := 0
	s, err := New(cfg, Options{
		ID:     "sess_test",
		Scene:  scene.Options{NewID: func() string { n++; return fmt.Sprintf("s%d", n) }},
		Logger: quiet,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func place(t *testing.T, s *Session, id string, x, y float64) {
	t.Helper()
	if _, err := s.Transform(id, scene.TransformRequest{Position: &geometry.Point{X: x, Y: y}}); err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
}

func position(t *testing.T, s *Session, id string) geometry.Point {
	t.Helper()
	for _, st := range s.Stickers() {
		if st.ID == id {
			return st.Position
		}
	}
	t.Fatalf("sticker %s missing", id)
	return geometry.Point{}
}

func key(k string, mods interaction.Modifiers) interaction.Event {
	return interaction.Event{Type: interaction.EventKeyDown, Key: k, Modifiers: mods}
}

func pointer(typ interaction.EventType, x, y float64) interaction.Event {
	return interaction.Event{Type: typ, X: x, Y: y}
}

func TestNewDefaultsAndCatalog(t *testing.T) {
	s := newSession(t, Config{
		ProductID: "p1",
		VariantID: "v1",
		Stickers: []CatalogItem{
			{ID: "cat", ImageRef: "cat.png"},
			{ID: "blank"},
			{ID: "cat", ImageRef: "other.png"},
			{ImageRef: "dog.png"},
		},
	})
	if got := s.View().Canvas; got != (geometry.Size{Width: 400, Height: 500}) {
		t.Errorf("canvas = %+v", got)
	}
	if got := s.Catalog(); len(got) != 2 {
		t.Errorf("catalog = %+v, want 2 usable entries", got)
	}

	if _, err := s.AddSticker("other.png"); !errors.Is(err, ErrUnknownImage) {
		t.Errorf("error = %v, want ErrUnknownImage", err)
	}
	id, err := s.AddSticker("dog.png")
	if err != nil {
		t.Fatalf("AddSticker failed: %v", err)
	}
	if p := position(t, s, id); p != (geometry.Point{X: 200, Y: 250}) {
		t.Errorf("new sticker at %+v, want canvas center", p)
	}
	if s.Selected() != id {
		t.Errorf("selected = %q, want %q", s.Selected(), id)
	}
}

func TestSessionExampleWithUndo(t *testing.T) {
	s := newSession(t, Config{})
	a, _ := s.AddSticker("a.png")
	b, _ := s.AddSticker("b.png")
	place(t, s, a, 100, 100)
	place(t, s, b, 130, 130)

	// Clicking the overlap selects B, the top sticker.
	s.Handle(pointer(interaction.EventPointerDown, 120, 120))
	s.Handle(pointer(interaction.EventPointerUp, 120, 120))
	if s.Selected() != b {
		t.Fatalf("selected = %q, want %q", s.Selected(), b)
	}

	if _, err := s.Handle(key(interaction.KeyDelete, interaction.Modifiers{})); err != nil {
		t.Fatal(err)
	}
	if len(s.Stickers()) != 1 {
		t.Fatalf("got %d stickers after delete", len(s.Stickers()))
	}

	if changed, _ := s.Handle(key("z", interaction.Modifiers{Ctrl: true})); !changed {
		t.Fatal("Ctrl+Z reported no change")
	}
	stickers := s.Stickers()
	if len(stickers) != 2 || stickers[1].ID != b || stickers[1].ZIndex != 1 {
		t.Fatalf("after undo = %+v, want B restored on top", stickers)
	}

	if changed, _ := s.Handle(key("Z", interaction.Modifiers{Meta: true, Shift: true})); !changed {
		t.Fatal("Cmd+Shift+Z reported no change")
	}
	if len(s.Stickers()) != 1 {
		t.Errorf("redo did not delete again")
	}
	s.Handle(key("z", interaction.Modifiers{Meta: true}))
	if changed, _ := s.Handle(key("y", interaction.Modifiers{Ctrl: true})); !changed {
		t.Error("Ctrl+Y reported no change")
	}
}

func TestDragIsOneUndoStep(t *testing.T) {
	s := newSession(t, Config{})
	id, _ := s.AddSticker("a.png")

	s.Handle(pointer(interaction.EventPointerDown, 200, 250))
	for i := 1; i <= 30; i++ {
		s.Handle(pointer(interaction.EventPointerMove, 200+float64(i), 250))
	}

	if s.Undo() {
		t.Error("Undo applied during a gesture")
	}
	if _, err := s.Export(); !errors.Is(err, ErrGestureInProgress) {
		t.Errorf("Export error = %v, want ErrGestureInProgress", err)
	}
	if _, err := s.AddSticker("b.png"); !errors.Is(err, ErrGestureInProgress) {
		t.Errorf("AddSticker error = %v, want ErrGestureInProgress", err)
	}

	s.Handle(pointer(interaction.EventPointerUp, 230, 250))
	if p := position(t, s, id); p.X != 230 {
		t.Fatalf("x = %v, want 230", p.X)
	}

	if !s.Undo() {
		t.Fatal("Undo failed")
	}
	if p := position(t, s, id); p.X != 200 {
		t.Errorf("x after undo = %v, want 200", p.X)
	}
	if !s.Undo() {
		t.Fatal("second Undo failed")
	}
	if len(s.Stickers()) != 0 {
		t.Error("second undo did not remove the added sticker")
	}
	if s.Undo() {
		t.Error("Undo past the beginning reported a change")
	}
	if s.Selected() != "" {
		t.Error("selection survived undo of its sticker")
	}
}

func TestDiscreteOperations(t *testing.T) {
	s := newSession(t, Config{})
	a, _ := s.AddSticker("a.png")

	dup, err := s.Duplicate(a)
	if err != nil {
		t.Fatalf("Duplicate failed: %v", err)
	}
	if p := position(t, s, dup); p != (geometry.Point{X: 220, Y: 270}) {
		t.Errorf("duplicate at %+v", p)
	}

	if err := s.Reorder(dup, scene.Back); err != nil {
		t.Fatal(err)
	}
	if s.Stickers()[0].ID != dup {
		t.Error("Reorder did not move duplicate to back")
	}

	if err := s.SetLocked(a, true); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Transform(a, scene.TransformRequest{Rotation: ptr(45.0)}); !errors.Is(err, scene.ErrLocked) {
		t.Errorf("Transform on locked = %v, want ErrLocked", err)
	}
	if err := s.Remove("missing"); !errors.Is(err, scene.ErrNotFound) {
		t.Errorf("Remove missing = %v, want ErrNotFound", err)
	}

	// add, duplicate, reorder, lock
	undo, _ := s.history.Depths()
	if undo != 4 {
		t.Errorf("undo depth = %d, want 4", undo)
	}

	// A no-op does not create an entry.
	if err := s.SetLocked(a, true); err != nil {
		t.Fatal(err)
	}
	if undo2, _ := s.history.Depths(); undo2 != undo {
		t.Errorf("no-op lock recorded an entry")
	}
}

func TestExportImport(t *testing.T) {
	src := newSession(t, Config{})
	a, _ := src.AddSticker("a.png")
	place(t, src, a, 80, 90)
	src.Transform(a, scene.TransformRequest{Rotation: ptr(30.0)})
	data, err := src.Export()
	if err != nil {
		t.Fatal(err)
	}

	dst := newSession(t, Config{})
	dst.AddSticker("junk.png")
	if err := dst.Import(data); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if dst.CanUndo() || dst.CanRedo() {
		t.Error("history survived import")
	}
	got := dst.Stickers()
	if len(got) != 1 || got[0].ID != a {
		t.Fatalf("imported = %+v", got)
	}
	if math.Abs(got[0].Rotation-30) > 1e-9 || math.Abs(got[0].Position.X-80) > 1e-9 {
		t.Errorf("imported placement = %+v", got[0])
	}

	if err := dst.Import([]byte(`{"version":9}`)); !errors.Is(err, serialize.ErrInvalidFormat) {
		t.Errorf("error = %v, want ErrInvalidFormat", err)
	}
	if len(dst.Stickers()) != 1 {
		t.Error("failed import changed the scene")
	}

	resumed := newSession(t, Config{Design: data})
	if len(resumed.Stickers()) != 1 {
		t.Errorf("design in config not restored")
	}
	if _, err := New(Config{Design: []byte(`nope`)}, Options{Logger: quiet}); !errors.Is(err, serialize.ErrInvalidFormat) {
		t.Errorf("bad design error = %v", err)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	s1 := newSession(t, Config{})
	s2 := newSession(t, Config{CanvasWidth: 800, CanvasHeight: 800})
	s1.AddSticker("a.png")
	if len(s2.Stickers()) != 0 {
		t.Error("sticker leaked across sessions")
	}
	if s2.Undo() {
		t.Error("undo leaked across sessions")
	}
}

func TestCheckoutAndView(t *testing.T) {
	s := newSession(t, Config{ProductID: "p1", VariantID: "v1"})
	id, _ := s.AddSticker("a.png")

	svc, err := checkout.NewService("secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	item, err := s.Checkout(svc)
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	claims, err := svc.Verify(*item)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.SessionID != "sess_test" || claims.ProductID != "p1" {
		t.Errorf("claims = %+v", claims)
	}

	frame := s.View()
	if frame.Selection != id || !frame.CanUndo || frame.CanRedo {
		t.Errorf("frame = %+v", frame)
	}
	if len(frame.Commands) == 0 || frame.Commands[0].ImageRef != "a.png" {
		t.Errorf("commands = %+v", frame.Commands)
	}
}

func ptr[T any](v T) *T { return &v }

func TestStartingStickersDropInvalidEntries(t *testing.T) {
	design := []byte(`{"version":1,"canvas":{"width":400,"height":500},"stickers":[
		{"id":"b","imageRef":"a.png","x":0.5,"y":0.5,"width":0.25,"height":0.2,"rotation":400,"zIndex":1},
		{"id":"a","imageRef":"a.png","x":0.5,"y":0.5,"width":0.25,"height":0.2,"rotation":0,"zIndex":0}]}`)
	s := newSession(t, Config{
		Stickers: []CatalogItem{{ImageRef: "a.png"}},
		Design:   design,
		Placed: []scene.StickerSpec{
			{ImageRef: "a.png", Position: geometry.Point{X: 390, Y: 10}, Size: geometry.Size{Width: 50, Height: 50}},
			{ImageRef: "", Position: geometry.Point{X: 100, Y: 100}, Size: geometry.Size{Width: 50, Height: 50}},
			{ID: "a", ImageRef: "a.png", Position: geometry.Point{X: 100, Y: 100}, Size: geometry.Size{Width: 50, Height: 50}},
			{ImageRef: "other.png", Position: geometry.Point{X: 100, Y: 100}, Size: geometry.Size{Width: 50, Height: 50}},
			{ImageRef: "a.png", Position: geometry.Point{X: 100, Y: 100}, Size: geometry.Size{Width: 0, Height: 50}},
		},
	})

	got := s.Stickers()
	if len(got) != 2 {
		t.Fatalf("stickers = %+v, want 2", got)
	}
	if got[0].ID != "a" || got[0].Position != (geometry.Point{X: 200, Y: 250}) {
		t.Errorf("design sticker = %+v", got[0])
	}
	// Placed entries are clamped into the canvas like AddSticker.
	if got[1].ID != "s1" || got[1].Position != (geometry.Point{X: 375, Y: 25}) {
		t.Errorf("placed sticker = %+v", got[1])
	}
	if s.CanUndo() {
		t.Error("starting stickers recorded in history")
	}
}

func TestImportChecksCatalog(t *testing.T) {
	src := newSession(t, Config{})
	src.AddSticker("x.png")
	data, err := src.Export()
	if err != nil {
		t.Fatal(err)
	}

	dst := newSession(t, Config{Stickers: []CatalogItem{{ImageRef: "a.png"}}})
	if _, err := dst.AddSticker("a.png"); err != nil {
		t.Fatal(err)
	}
	if err := dst.Import(data); !errors.Is(err, ErrUnknownImage) {
		t.Fatalf("error = %v, want ErrUnknownImage", err)
	}
	if got := dst.Stickers(); len(got) != 1 || got[0].ImageRef != "a.png" {
		t.Errorf("failed import changed the scene: %+v", got)
	}
}

func TestCancelRevertsGesture(t *testing.T) {
	s := newSession(t, Config{})
	id, _ := s.AddSticker("a.png")

	if s.Cancel() {
		t.Error("cancel while idle reported a change")
	}
	s.Handle(pointer(interaction.EventPointerDown, 200, 250))
	s.Handle(pointer(interaction.EventPointerMove, 220, 260))
	if !s.Cancel() {
		t.Fatal("cancel reported no change")
	}
	if s.State().Kind != interaction.Idle {
		t.Errorf("state = %v", s.State().Kind)
	}
	if p := position(t, s, id); p != (geometry.Point{X: 200, Y: 250}) {
		t.Errorf("position = %+v", p)
	}
	if _, err := s.Export(); err != nil {
		t.Errorf("Export after cancel: %v", err)
	}
	s.Undo()
	if len(s.Stickers()) != 0 {
		t.Error("cancelled gesture left a history entry")
	}
}
