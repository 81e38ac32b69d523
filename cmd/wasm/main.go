//go:build js && wasm

package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"syscall/js"

	"github.com/inamate/stickers/internal/interaction"
	"github.com/inamate/stickers/internal/scene"
	"github.com/inamate/stickers/internal/session"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})))

	js.Global().Set("initStickerConfigurator", js.FuncOf(initStickerConfigurator))

	// Signal that WASM is ready
	js.Global().Set("stickerConfiguratorReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

// instance is one mounted configurator. Every call to
// initStickerConfigurator creates its own.
type instance struct {
	session  *session.Session
	onChange js.Value
}

// initStickerConfigurator(config) creates a configurator session from the
// host page's config object and returns its API object.
func initStickerConfigurator(this js.Value, args []js.Value) interface{} {
	var cfg session.Config
	onChange := js.Undefined()
	if len(args) > 0 && args[0].Type() == js.TypeObject {
		raw := js.Global().Get("JSON").Call("stringify", args[0]).String()
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return errorResult(err)
		}
		if cb := args[0].Get("onChange"); cb.Type() == js.TypeFunction {
			onChange = cb
		}
	}

	s, err := session.New(cfg, session.Options{})
	if err != nil {
		return errorResult(err)
	}
	inst := &instance{session: s, onChange: onChange}

	api := js.Global().Get("Object").New()
	api.Set("id", s.ID())

	// --- Commands (host → engine) ---
	api.Set("handleEvent", js.FuncOf(inst.handleEvent))
	api.Set("addSticker", js.FuncOf(inst.addSticker))
	api.Set("duplicate", js.FuncOf(inst.duplicate))
	api.Set("remove", js.FuncOf(inst.remove))
	api.Set("setLocked", js.FuncOf(inst.setLocked))
	api.Set("reorder", js.FuncOf(inst.reorder))
	api.Set("select", js.FuncOf(inst.selectSticker))
	api.Set("undo", js.FuncOf(inst.undo))
	api.Set("redo", js.FuncOf(inst.redo))
	api.Set("cancel", js.FuncOf(inst.cancel))
	api.Set("importDesign", js.FuncOf(inst.importDesign))

	// --- Queries (host ← engine) ---
	api.Set("render", js.FuncOf(inst.render))
	api.Set("exportDesign", js.FuncOf(inst.exportDesign))
	api.Set("getCatalog", js.FuncOf(inst.getCatalog))

	return api
}

func (in *instance) handleEvent(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorMessage("missing event")
	}
	var ev interaction.Event
	if err := decodeArg(args[0], &ev); err != nil {
		return errorResult(err)
	}
	changed, err := in.session.Handle(ev)
	if err != nil {
		return errorResult(err)
	}
	if changed {
		in.notify()
	}
	return js.ValueOf(changed)
}

func (in *instance) addSticker(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorMessage("missing image reference")
	}
	id, err := in.session.AddSticker(args[0].String())
	if err != nil {
		return errorResult(err)
	}
	in.notify()
	return js.ValueOf(id)
}

func (in *instance) duplicate(this js.Value, args []js.Value) interface{} {
	id, err := in.session.Duplicate(stringArg(args, 0, in.session.Selected()))
	if err != nil {
		return errorResult(err)
	}
	in.notify()
	return js.ValueOf(id)
}

func (in *instance) remove(this js.Value, args []js.Value) interface{} {
	return in.result(in.session.Remove(stringArg(args, 0, in.session.Selected())))
}

func (in *instance) setLocked(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorMessage("expected (id, locked)")
	}
	return in.result(in.session.SetLocked(args[0].String(), args[1].Truthy()))
}

func (in *instance) reorder(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorMessage("expected (id, direction)")
	}
	dir, err := scene.ParseDirection(args[1].String())
	if err != nil {
		return errorResult(err)
	}
	return in.result(in.session.Reorder(args[0].String(), dir))
}

func (in *instance) selectSticker(this js.Value, args []js.Value) interface{} {
	changed := in.session.Select(stringArg(args, 0, ""))
	if changed {
		in.notify()
	}
	return js.ValueOf(changed)
}

func (in *instance) undo(this js.Value, args []js.Value) interface{} {
	changed := in.session.Undo()
	if changed {
		in.notify()
	}
	return js.ValueOf(changed)
}

// cancel reverts the active gesture, e.g. when the page loses focus.
func (in *instance) cancel(this js.Value, args []js.Value) interface{} {
	changed := in.session.Cancel()
	if changed {
		in.notify()
	}
	return js.ValueOf(changed)
}

func (in *instance) redo(this js.Value, args []js.Value) interface{} {
	changed := in.session.Redo()
	if changed {
		in.notify()
	}
	return js.ValueOf(changed)
}

func (in *instance) importDesign(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorMessage("missing design JSON")
	}
	return in.result(in.session.Import([]byte(args[0].String())))
}

// render returns the current frame as a JSON string.
func (in *instance) render(this js.Value, args []js.Value) interface{} {
	data, err := in.session.View().ToJSON()
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(data)
}

func (in *instance) exportDesign(this js.Value, args []js.Value) interface{} {
	data, err := in.session.Export()
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(string(data))
}

func (in *instance) getCatalog(this js.Value, args []js.Value) interface{} {
	data, err := json.Marshal(in.session.Catalog())
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(string(data))
}

func (in *instance) result(err error) interface{} {
	if err != nil {
		return errorResult(err)
	}
	in.notify()
	return js.ValueOf(map[string]interface{}{"ok": true})
}

// notify hands the new frame to the host's onChange callback, if any.
func (in *instance) notify() {
	if in.onChange.Type() != js.TypeFunction {
		return
	}
	data, err := in.session.View().ToJSON()
	if err != nil {
		slog.Error("encode frame", "error", err)
		return
	}
	in.onChange.Invoke(data)
}

// decodeArg accepts either a JSON string or a plain object.
func decodeArg(v js.Value, dst any) error {
	raw := v.String()
	if v.Type() == js.TypeObject {
		raw = js.Global().Get("JSON").Call("stringify", v).String()
	}
	return json.Unmarshal([]byte(raw), dst)
}

func stringArg(args []js.Value, i int, fallback string) string {
	if len(args) > i && args[i].Type() == js.TypeString {
		return args[i].String()
	}
	return fallback
}

func errorResult(err error) interface{} {
	return errorMessage(err.Error())
}

func errorMessage(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": msg})
}
