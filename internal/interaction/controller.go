// Package interaction turns raw pointer and keyboard input into scene
// mutations. It is a synchronous state machine:
//
//	Idle      --down on sticker-------------> Dragging
//	Idle      --down on selected handle-----> Resizing | Rotating
//	Idle      --down on locked sticker------> Selecting
//	Idle      --down on empty canvas--------> Idle (selection cleared)
//	gesture   --move------------------------> same state, scene updated
//	gesture   --up--------------------------> Idle, one history entry
//	gesture   --leave-----------------------> same state, pointer off canvas
//	gesture   --cancel on canvas------------> Idle, one history entry
//	gesture   --cancel off canvas | Escape--> Idle, scene reverted, no entry
//	Selecting --up | cancel-----------------> Idle
//
// Keyboard nudges, deletes and reorders apply one mutation and one history
// entry per keypress while idle.
package interaction

import (
	"errors"
	"log/slog"

	"github.com/inamate/stickers/internal/geometry"
	"github.com/inamate/stickers/internal/scene"
)

var ErrInvalidEvent = errors.New("invalid input event")

// Recorder receives one committed entry per completed action.
type Recorder interface {
	Commit(label string, before scene.Snapshot)
}

// Options tunes handle hit areas and keyboard steps.
type Options struct {
	HandleRadius       float64
	RotateHandleOffset float64
	NudgeStep          float64
	NudgeStepLarge     float64 // with Shift
	RotationSnap       float64 // degrees, with Shift while rotating
	Logger             *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.HandleRadius == 0 {
		o.HandleRadius = 10
	}
	if o.RotateHandleOffset == 0 {
		o.RotateHandleOffset = 30
	}
	if o.NudgeStep == 0 {
		o.NudgeStep = 1
	}
	if o.NudgeStepLarge == 0 {
		o.NudgeStepLarge = 10
	}
	if o.RotationSnap == 0 {
		o.RotationSnap = 15
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Controller drives one Scene from input events.
type Controller struct {
	scene *scene.Scene
	rec   Recorder
	opts  Options
	log   *slog.Logger

	state    State
	selected string

	// Captured at pointer-down for the active gesture.
	before        scene.Snapshot
	startBox      geometry.Box
	startPointer  geometry.Point
	startRotation float64
	outside       bool // pointer left the canvas during the gesture
}

// New creates a controller for s that commits completed actions to rec.
func New(s *scene.Scene, rec Recorder, opts Options) *Controller {
	opts = opts.withDefaults()
	return &Controller{
		scene: s,
		rec:   rec,
		opts:  opts,
		log:   opts.Logger,
	}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Idle reports whether no pointer interaction is in progress.
func (c *Controller) Idle() bool { return c.state.Kind == Idle }

// Selected returns the selected sticker id, or "".
func (c *Controller) Selected() string { return c.selected }

// HandleStyle returns the handle geometry used for hit testing.
func (c *Controller) HandleStyle() geometry.HandleStyle {
	return geometry.HandleStyle{Radius: c.opts.HandleRadius, RotateOffset: c.opts.RotateHandleOffset}
}

// Select sets the selection. Selecting an unknown id clears it. It is
// ignored while a gesture is in progress.
func (c *Controller) Select(id string) bool {
	if c.state.Kind != Idle {
		return false
	}
	if _, ok := c.scene.Get(id); !ok {
		id = ""
	}
	changed := c.selected != id
	c.selected = id
	return changed
}

// Sync drops a selection that no longer exists, e.g. after undo.
func (c *Controller) Sync() {
	if _, ok := c.scene.Get(c.selected); !ok {
		c.selected = ""
	}
}

// PointerDown starts a gesture, selects a sticker, or clears the selection.
func (c *Controller) PointerDown(p geometry.Point, mods Modifiers) bool {
	if c.state.Kind != Idle {
		return false
	}

	if st, ok := c.scene.Get(c.selected); ok && !st.Locked {
		h := geometry.HandleAt(st.Box(), p, c.HandleStyle())
		switch {
		case h == geometry.HandleRotate:
			c.begin(st, p)
			pivot := st.Position
			c.state = State{
				Kind:       Rotating,
				StickerID:  st.ID,
				StartAngle: geometry.AngleDegrees(pivot, p),
				Pivot:      pivot,
			}
			return true
		case h.IsResize():
			c.begin(st, p)
			c.state = State{
				Kind:      Resizing,
				StickerID: st.ID,
				Handle:    h,
				Anchor:    geometry.Anchor(st.Box(), h),
			}
			return true
		}
	}

	id, ok := c.scene.HitTest(p)
	if !ok {
		changed := c.selected != ""
		c.selected = ""
		return changed
	}

	st, _ := c.scene.Get(id)
	c.selected = id
	if st.Locked {
		c.state = State{Kind: Selecting, StickerID: id}
		return true
	}

	c.begin(st, p)
	c.state = State{
		Kind:       Dragging,
		StickerID:  id,
		GrabOffset: p.Sub(st.Position),
	}
	return true
}

func (c *Controller) begin(st scene.Sticker, p geometry.Point) {
	c.before = c.scene.Snapshot()
	c.startBox = st.Box()
	c.startPointer = p
	c.startRotation = st.Rotation
	c.outside = false
}

// PointerMove updates the active gesture. Every proposal is computed from
// the pointer-down state so rounding does not accumulate.
func (c *Controller) PointerMove(p geometry.Point, mods Modifiers) bool {
	id := c.state.StickerID
	var req scene.TransformRequest

	if c.outside && geometry.CanvasRect(c.scene.Canvas()).Contains(p) {
		c.outside = false
	}

	switch c.state.Kind {
	case Dragging:
		pos := p.Sub(c.state.GrabOffset)
		req.Position = &pos

	case Resizing:
		box := geometry.ResizeWithAnchor(c.startBox, c.state.Handle, p.Sub(c.startPointer), geometry.ResizeOptions{
			MinSize:    c.scene.Options().MinSize,
			KeepAspect: c.state.Handle.IsCorner() && !mods.Shift,
		})
		req.Position = &box.Center
		req.Size = &box.Size

	case Rotating:
		rot := c.startRotation + geometry.AngleDegrees(c.state.Pivot, p) - c.state.StartAngle
		if mods.Shift {
			rot = geometry.SnapDegrees(rot, c.opts.RotationSnap)
		}
		req.Rotation = &rot

	default:
		return false
	}

	if _, err := c.scene.UpdateTransform(id, req); err != nil {
		c.log.Debug("gesture update ignored", "sticker", id, "state", c.state.Kind.String(), "error", err)
		return false
	}
	return true
}

// PointerUp ends the active gesture and commits its net effect as a single
// history entry.
func (c *Controller) PointerUp(p geometry.Point, mods Modifiers) bool {
	switch {
	case c.state.Gesture():
		label := c.state.Kind.String()
		c.state = State{}
		c.outside = false
		c.commitIfChanged(label, c.before)
		c.before = scene.Snapshot{}
		return true
	case c.state.Kind == Selecting:
		c.state = State{}
		return false
	}
	return false
}

// PointerLeave marks the active gesture as having left the canvas. The scene
// is unchanged; a later move back over the canvas clears the mark.
func (c *Controller) PointerLeave() bool {
	if c.state.Gesture() {
		c.outside = true
	}
	return false
}

// PointerCancel handles lost pointer input. A gesture whose pointer had left
// the canvas is reverted; otherwise it ends as if the pointer were released.
func (c *Controller) PointerCancel(p geometry.Point, mods Modifiers) bool {
	if c.state.Gesture() && !c.outside {
		return c.PointerUp(p, mods)
	}
	return c.Cancel()
}

// Cancel aborts the active gesture and reverts the scene to its state at
// pointer-down. No history entry is produced.
func (c *Controller) Cancel() bool {
	switch {
	case c.state.Gesture():
		c.scene.Restore(c.before)
		c.before = scene.Snapshot{}
		c.state = State{}
		c.outside = false
		c.Sync()
		return true
	case c.state.Kind == Selecting:
		c.state = State{}
	}
	return false
}

// KeyDown handles nudging, deletion, layering and Escape.
func (c *Controller) KeyDown(key string, mods Modifiers) bool {
	if key == KeyEscape {
		if c.state.Gesture() {
			return c.Cancel()
		}
		c.state = State{}
		changed := c.selected != ""
		c.selected = ""
		return changed
	}
	if c.state.Kind != Idle || c.selected == "" || mods.Ctrl || mods.Meta {
		return false
	}

	st, ok := c.scene.Get(c.selected)
	if !ok {
		c.selected = ""
		return false
	}

	switch key {
	case KeyArrowLeft, KeyArrowRight, KeyArrowUp, KeyArrowDown:
		return c.nudge(st, key, mods)
	case KeyDelete, KeyBackspace:
		before := c.scene.Snapshot()
		if err := c.scene.Remove(st.ID); err != nil {
			c.log.Debug("delete ignored", "sticker", st.ID, "error", err)
			return false
		}
		c.selected = ""
		c.rec.Commit("delete", before)
		return true
	case "[":
		return c.reorder(st.ID, pick(mods.Shift, scene.Back, scene.Backward))
	case "]":
		return c.reorder(st.ID, pick(mods.Shift, scene.Front, scene.Forward))
	case "{":
		return c.reorder(st.ID, scene.Back)
	case "}":
		return c.reorder(st.ID, scene.Front)
	}
	return false
}

func (c *Controller) nudge(st scene.Sticker, key string, mods Modifiers) bool {
	step := c.opts.NudgeStep
	if mods.Shift {
		step = c.opts.NudgeStepLarge
	}
	var d geometry.Point
	switch key {
	case KeyArrowLeft:
		d.X = -step
	case KeyArrowRight:
		d.X = step
	case KeyArrowUp:
		d.Y = -step
	case KeyArrowDown:
		d.Y = step
	}

	before := c.scene.Snapshot()
	pos := st.Position.Add(d)
	if _, err := c.scene.UpdateTransform(st.ID, scene.TransformRequest{Position: &pos}); err != nil {
		c.log.Debug("nudge ignored", "sticker", st.ID, "error", err)
		return false
	}
	return c.commitIfChanged("nudge", before)
}

func (c *Controller) reorder(id string, dir scene.Direction) bool {
	before := c.scene.Snapshot()
	changed, err := c.scene.Reorder(id, dir)
	if err != nil {
		c.log.Debug("reorder ignored", "sticker", id, "error", err)
		return false
	}
	if changed {
		c.rec.Commit("reorder", before)
	}
	return changed
}

func (c *Controller) commitIfChanged(label string, before scene.Snapshot) bool {
	if c.scene.Snapshot().Equal(before) {
		return false
	}
	c.rec.Commit(label, before)
	return true
}

func pick[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}
