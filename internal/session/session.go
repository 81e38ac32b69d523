// Package session ties one scene, its history and its interaction controller
// into a single configurator instance. Sessions share nothing, so any number
// can live side by side. A Session is not safe for concurrent use.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/inamate/stickers/internal/checkout"
	"github.com/inamate/stickers/internal/geometry"
	"github.com/inamate/stickers/internal/history"
	"github.com/inamate/stickers/internal/interaction"
	"github.com/inamate/stickers/internal/scene"
	"github.com/inamate/stickers/internal/serialize"
	"github.com/inamate/stickers/internal/typeid"
	"github.com/inamate/stickers/internal/view"
)

var (
	ErrGestureInProgress = errors.New("gesture in progress")
	ErrUnknownImage      = errors.New("image not in sticker catalog")
)

// DefaultStickerSize is the edge length of a newly added sticker.
const DefaultStickerSize = 100.0

// duplicateOffset shifts a duplicate so it does not hide its source.
const duplicateOffset = 20.0

// Options configures the engine behind a session.
type Options struct {
	ID                 string // generated when empty
	Scene              scene.Options
	Interaction        interaction.Options
	HistoryDepth       int
	DefaultStickerSize float64
	Logger             *slog.Logger
}

type Session struct {
	id      string
	cfg     Config
	catalog []CatalogItem
	images  map[string]CatalogItem
	opts    Options
	log     *slog.Logger

	scene   *scene.Scene
	history *history.Manager
	ctrl    *interaction.Controller
}

// New creates a session for the host configuration. The design and placed
// stickers in cfg become the starting scene with an empty history.
func New(cfg Config, opts Options) (*Session, error) {
	if opts.ID == "" {
		opts.ID = typeid.NewSessionID()
	}
	if opts.DefaultStickerSize <= 0 {
		opts.DefaultStickerSize = DefaultStickerSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	log := opts.Logger.With("session", opts.ID)
	opts.Interaction.Logger = log

	cfg = cfg.withDefaults()
	s := &Session{
		id:      opts.ID,
		cfg:     cfg,
		opts:    opts,
		log:     log,
		history: history.New(opts.HistoryDepth),
	}
	s.catalog, s.images = catalog(cfg.Stickers, log)

	canvas := geometry.Size{Width: cfg.CanvasWidth, Height: cfg.CanvasHeight}
	sc, err := scene.New(canvas, opts.Scene)
	if err != nil {
		return nil, err
	}
	s.attach(sc)

	if err := s.seed(cfg); err != nil {
		return nil, err
	}

	log.Info("session created", "product", cfg.ProductID, "canvas", fmt.Sprintf("%vx%v", canvas.Width, canvas.Height), "catalog", len(s.catalog), "stickers", sc.Len())
	return s, nil
}

// seed places the starting stickers: the design's records bottom first, then
// cfg.Placed. Each one is checked like AddSticker; rejected entries are
// logged and skipped. Only an unreadable design is fatal.
func (s *Session) seed(cfg Config) error {
	var specs []scene.StickerSpec
	if len(cfg.Design) > 0 {
		doc, err := serialize.Unmarshal(cfg.Design)
		if err != nil {
			return fmt.Errorf("restore design: %w", err)
		}
		for _, r := range doc.Ordered() {
			if err := r.Validate(); err != nil {
				s.log.Warn("dropping design sticker", "id", r.ID, "error", err)
				continue
			}
			specs = append(specs, r.Spec(s.scene.Canvas()))
		}
	}
	specs = append(specs, cfg.Placed...)

	for _, spec := range specs {
		err := s.checkImage(spec.ImageRef)
		if err == nil {
			_, err = s.scene.Add(spec)
		}
		if err != nil {
			s.log.Warn("dropping initial sticker", "id", spec.ID, "image", spec.ImageRef, "error", err)
		}
	}
	return nil
}

func (s *Session) checkImage(ref string) error {
	if len(s.images) == 0 {
		return nil
	}
	if _, ok := s.images[ref]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownImage, ref)
	}
	return nil
}

func (s *Session) attach(sc *scene.Scene) {
	s.scene = sc
	s.ctrl = interaction.New(sc, s.history, s.opts.Interaction)
}

func (s *Session) ID() string { return s.id }

func (s *Session) Config() Config { return s.cfg }

// Catalog returns the usable catalog entries.
func (s *Session) Catalog() []CatalogItem {
	out := make([]CatalogItem, len(s.catalog))
	copy(out, s.catalog)
	return out
}

// Stickers returns the current stickers, bottom first.
func (s *Session) Stickers() []scene.Sticker { return s.scene.Stickers() }

// Selected returns the selected sticker id, or "".
func (s *Session) Selected() string { return s.ctrl.Selected() }

// State returns the interaction state.
func (s *Session) State() interaction.State { return s.ctrl.State() }

// Handle feeds one input event through the controller. Ctrl/Cmd+Z undoes,
// Ctrl/Cmd+Shift+Z and Ctrl+Y redo.
func (s *Session) Handle(ev interaction.Event) (bool, error) {
	if ev.Type == interaction.EventKeyDown && (ev.Ctrl || ev.Meta) {
		switch strings.ToLower(ev.Key) {
		case "z":
			if ev.Shift {
				return s.Redo(), nil
			}
			return s.Undo(), nil
		case "y":
			if ev.Ctrl {
				return s.Redo(), nil
			}
		}
	}
	return s.ctrl.Handle(ev)
}

// Undo restores the state before the last action. It is ignored while a
// gesture is in progress.
func (s *Session) Undo() bool {
	if !s.ctrl.Idle() {
		return false
	}
	e, ok := s.history.Undo(s.scene.Snapshot())
	if !ok {
		return false
	}
	s.scene.Restore(e.State)
	s.ctrl.Sync()
	s.log.Debug("undo", "action", e.Label, "seq", e.Seq)
	return true
}

// Redo re-applies the last undone action.
func (s *Session) Redo() bool {
	if !s.ctrl.Idle() {
		return false
	}
	e, ok := s.history.Redo(s.scene.Snapshot())
	if !ok {
		return false
	}
	s.scene.Restore(e.State)
	s.ctrl.Sync()
	s.log.Debug("redo", "action", e.Label, "seq", e.Seq)
	return true
}

// Cancel reverts an in-progress gesture, e.g. when its input source is gone.
func (s *Session) Cancel() bool {
	if !s.ctrl.State().Gesture() {
		return false
	}
	kind := s.ctrl.State().Kind
	s.ctrl.Cancel()
	s.log.Debug("gesture cancelled", "state", kind.String())
	return true
}

// CanUndo reports whether Undo would change anything.
func (s *Session) CanUndo() bool { return s.ctrl.Idle() && s.history.CanUndo() }

// CanRedo reports whether Redo would change anything.
func (s *Session) CanRedo() bool { return s.ctrl.Idle() && s.history.CanRedo() }

// AddSticker places imageRef at the canvas center at the default size and
// selects it.
func (s *Session) AddSticker(imageRef string) (string, error) {
	if err := s.checkImage(imageRef); err != nil {
		return "", err
	}
	canvas := s.scene.Canvas()
	var id string
	err := s.mutate("add", func() error {
		var err error
		id, err = s.scene.Add(scene.StickerSpec{
			ImageRef: imageRef,
			Position: geometry.Point{X: canvas.Width / 2, Y: canvas.Height / 2},
			Size:     geometry.Size{Width: s.opts.DefaultStickerSize, Height: s.opts.DefaultStickerSize},
		})
		return err
	})
	if err != nil {
		return "", err
	}
	s.ctrl.Select(id)
	return id, nil
}

// Duplicate copies a sticker on top of the stack, offset down and right, and
// selects the copy. The copy starts unlocked.
func (s *Session) Duplicate(id string) (string, error) {
	src, ok := s.scene.Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", scene.ErrNotFound, id)
	}
	var dup string
	err := s.mutate("duplicate", func() error {
		var err error
		dup, err = s.scene.Add(scene.StickerSpec{
			ImageRef: src.ImageRef,
			Position: src.Position.Add(geometry.Point{X: duplicateOffset, Y: duplicateOffset}),
			Size:     src.Size,
			Rotation: src.Rotation,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	s.ctrl.Select(dup)
	return dup, nil
}

// Remove deletes a sticker.
func (s *Session) Remove(id string) error {
	return s.mutate("delete", func() error { return s.scene.Remove(id) })
}

// SetLocked locks or unlocks a sticker.
func (s *Session) SetLocked(id string, locked bool) error {
	label := "unlock"
	if locked {
		label = "lock"
	}
	return s.mutate(label, func() error { return s.scene.SetLocked(id, locked) })
}

// Reorder moves a sticker in the stacking order.
func (s *Session) Reorder(id string, dir scene.Direction) error {
	return s.mutate("reorder", func() error {
		_, err := s.scene.Reorder(id, dir)
		return err
	})
}

// Transform applies a programmatic placement change, e.g. from numeric
// inputs. The proposal is clamped like a gesture.
func (s *Session) Transform(id string, req scene.TransformRequest) (scene.Transform, error) {
	var applied scene.Transform
	err := s.mutate("transform", func() error {
		var err error
		applied, err = s.scene.UpdateTransform(id, req)
		return err
	})
	return applied, err
}

// Select sets the selection; an empty or unknown id clears it.
func (s *Session) Select(id string) bool { return s.ctrl.Select(id) }

// mutate runs one discrete action and records it as a single history entry
// if it changed the scene.
func (s *Session) mutate(label string, fn func() error) error {
	if !s.ctrl.Idle() {
		return ErrGestureInProgress
	}
	before := s.scene.Snapshot()
	if err := fn(); err != nil {
		s.log.Debug("mutation rejected", "action", label, "error", err)
		return err
	}
	if !s.scene.Snapshot().Equal(before) {
		s.history.Commit(label, before)
	}
	s.ctrl.Sync()
	return nil
}

// Document returns the serialized form of the scene.
func (s *Session) Document() (serialize.Document, error) {
	if !s.ctrl.Idle() {
		return serialize.Document{}, ErrGestureInProgress
	}
	return serialize.Serialize(s.scene), nil
}

// Export returns the scene as JSON. It fails while a gesture is in progress.
func (s *Session) Export() ([]byte, error) {
	if !s.ctrl.Idle() {
		return nil, ErrGestureInProgress
	}
	return serialize.Marshal(s.scene)
}

// Import replaces the scene with a serialized one and clears history. The
// payload is laid out on this session's canvas; normalized coordinates make
// that independent of the canvas it was exported from. Unlike the starting
// design, any invalid sticker rejects the whole payload.
func (s *Session) Import(data []byte) error {
	if !s.ctrl.Idle() {
		return ErrGestureInProgress
	}
	doc, err := serialize.Unmarshal(data)
	if err != nil {
		return err
	}
	for _, r := range doc.Stickers {
		if err := s.checkImage(r.ImageRef); err != nil {
			return err
		}
	}
	doc.Canvas = s.scene.Canvas()
	sc, err := doc.Scene(s.scene.Options())
	if err != nil {
		return err
	}
	s.attach(sc)
	s.history.Clear()
	s.log.Info("design imported", "stickers", sc.Len())
	return nil
}

// Checkout builds the cart line item for the current design.
func (s *Session) Checkout(svc *checkout.Service) (*checkout.LineItem, error) {
	if !s.ctrl.Idle() {
		return nil, ErrGestureInProgress
	}
	item, err := svc.LineItem(s.id, s.cfg.Product(), s.scene)
	if err != nil {
		return nil, err
	}
	s.log.Info("checkout prepared", "variant", item.VariantID, "stickers", s.scene.Len())
	return item, nil
}

// View returns everything needed to repaint the configurator.
func (s *Session) View() view.Frame {
	return view.Frame{
		Canvas:    s.scene.Canvas(),
		Selection: s.ctrl.Selected(),
		State:     s.ctrl.State(),
		CanUndo:   s.CanUndo(),
		CanRedo:   s.CanRedo(),
		Stickers:  s.scene.Stickers(),
		Commands:  view.Compile(s.scene, s.ctrl.Selected(), s.ctrl.HandleStyle()),
	}
}
