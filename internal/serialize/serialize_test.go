package serialize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/inamate/stickers/internal/geometry"
	"github.com/inamate/stickers/internal/scene"
)

const epsilon = 1e-9

func testOptions() scene.Options {
	n := 0
	return scene.Options{NewID: func() string { n++; return fmt.Sprintf("s%d", n) }}
}

func buildScene(t *testing.T) *scene.Scene {
	t.Helper()
	s, err := scene.New(geometry.Size{Width: 400, Height: 500}, testOptions())
	if err != nil {
		t.Fatalf("scene.New failed: %v", err)
	}
	specs := []scene.StickerSpec{
		{ImageRef: "cat.png", Position: geometry.Point{X: 120, Y: 140}, Size: geometry.Size{Width: 80, Height: 60}, Rotation: 33.3},
		{ImageRef: "dog.png", Position: geometry.Point{X: 300, Y: 380}, Size: geometry.Size{Width: 100, Height: 100}, Rotation: 271},
		{ImageRef: "sun.png", Position: geometry.Point{X: 200, Y: 250}, Size: geometry.Size{Width: 20, Height: 35}, Locked: true},
	}
	for _, spec := range specs {
		if _, err := s.Add(spec); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	if _, err := s.Reorder("s1", scene.Front); err != nil {
		t.Fatalf("Reorder failed: %v", err)
	}
	return s
}

func assertNear(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	s := buildScene(t)
	data, err := Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	got, err := Deserialize(data, testOptions())
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if got.Canvas() != s.Canvas() {
		t.Errorf("canvas = %+v, want %+v", got.Canvas(), s.Canvas())
	}

	want := s.Stickers()
	have := got.Stickers()
	if len(have) != len(want) {
		t.Fatalf("got %d stickers, want %d", len(have), len(want))
	}
	for i := range want {
		w, h := want[i], have[i]
		if h.ID != w.ID || h.ImageRef != w.ImageRef || h.ZIndex != w.ZIndex || h.Locked != w.Locked {
			t.Errorf("sticker %d = %+v, want %+v", i, h, w)
		}
		assertNear(t, w.ID+" x", h.Position.X, w.Position.X)
		assertNear(t, w.ID+" y", h.Position.Y, w.Position.Y)
		assertNear(t, w.ID+" width", h.Size.Width, w.Size.Width)
		assertNear(t, w.ID+" height", h.Size.Height, w.Size.Height)
		assertNear(t, w.ID+" rotation", h.Rotation, w.Rotation)
	}
	if err := got.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
}

func TestSerializeNormalizesAndOrders(t *testing.T) {
	doc := Serialize(buildScene(t))
	if doc.Version != Version {
		t.Errorf("version = %d", doc.Version)
	}
	for i, r := range doc.Stickers {
		if r.ZIndex != i {
			t.Errorf("record %d has zIndex %d", i, r.ZIndex)
		}
	}
	top := doc.Stickers[2]
	if top.ID != "s1" {
		t.Fatalf("top record = %q, want s1", top.ID)
	}
	assertNear(t, "x", top.X, 0.3)
	assertNear(t, "y", top.Y, 0.28)
	assertNear(t, "width", top.Width, 0.2)
	assertNear(t, "height", top.Height, 0.12)
}

func TestSerializeIsDeterministic(t *testing.T) {
	a := buildScene(t)

	// Same contents reached through a different history.
	b := buildScene(t)
	id := "s2"
	pos := geometry.Point{X: 10, Y: 10}
	if _, err := b.UpdateTransform(id, scene.TransformRequest{Position: &pos}); err != nil {
		t.Fatal(err)
	}
	st, _ := a.Get(id)
	orig := st.Position
	if _, err := b.UpdateTransform(id, scene.TransformRequest{Position: &orig}); err != nil {
		t.Fatal(err)
	}

	da, _ := Marshal(a)
	db, _ := Marshal(b)
	if !bytes.Equal(da, db) {
		t.Errorf("outputs differ:\n%s\n%s", da, db)
	}
}

func TestDeserializeRejectsFormat(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{"version":1,`},
		{"not an object", `[1,2,3]`},
		{"missing version", `{"canvas":{"width":400,"height":500},"stickers":[]}`},
		{"future version", `{"version":2,"canvas":{"width":400,"height":500},"stickers":[]}`},
		{"trailing data", `{"version":1,"canvas":{"width":400,"height":500},"stickers":[]} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize([]byte(tt.data), testOptions())
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("error = %v, want ErrInvalidFormat", err)
			}
		})
	}
}

func TestDeserializeRejectsData(t *testing.T) {
	record := func(mut func(r *Record)) Record {
		r := Record{ID: "a", ImageRef: "img", X: 0.5, Y: 0.5, Width: 0.25, Height: 0.2}
		if mut != nil {
			mut(&r)
		}
		return r
	}
	tests := []struct {
		name    string
		canvas  geometry.Size
		records []Record
		is      error
	}{
		{"empty canvas", geometry.Size{}, nil, nil},
		{"out of bounds", geometry.Size{Width: 400, Height: 500}, []Record{record(func(r *Record) { r.X = 0.99 })}, scene.ErrInvalidState},
		{"below min size", geometry.Size{Width: 400, Height: 500}, []Record{record(func(r *Record) { r.Width = 0.01 })}, scene.ErrInvalidState},
		{"negative size", geometry.Size{Width: 400, Height: 500}, []Record{record(func(r *Record) { r.Height = -0.2 })}, scene.ErrInvalidState},
		{"rotation out of range", geometry.Size{Width: 400, Height: 500}, []Record{record(func(r *Record) { r.Rotation = 360 })}, scene.ErrInvalidState},
		{"missing image", geometry.Size{Width: 400, Height: 500}, []Record{record(func(r *Record) { r.ImageRef = "" })}, scene.ErrInvalidState},
		{"duplicate id", geometry.Size{Width: 400, Height: 500}, []Record{record(nil), record(func(r *Record) { r.ZIndex = 1 })}, scene.ErrDuplicateID},
		{"zIndex gap", geometry.Size{Width: 400, Height: 500}, []Record{record(func(r *Record) { r.ZIndex = 1 })}, scene.ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(Document{Version: Version, Canvas: tt.canvas, Stickers: tt.records})
			if err != nil {
				t.Fatal(err)
			}
			_, err = Deserialize(data, testOptions())
			if !errors.Is(err, ErrInvalidData) {
				t.Errorf("error = %v, want ErrInvalidData", err)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("error = %v, want wrapped %v", err, tt.is)
			}
		})
	}
}

func TestDeserializeRespectsCapacity(t *testing.T) {
	data, _ := Marshal(buildScene(t))
	opts := testOptions()
	opts.MaxStickers = 2
	_, err := Deserialize(data, opts)
	if !errors.Is(err, ErrInvalidData) || !errors.Is(err, scene.ErrCapacityExceeded) {
		t.Errorf("error = %v, want capacity rejection", err)
	}
}

func TestRecordValidateAndSpec(t *testing.T) {
	ok := Record{ID: "a", ImageRef: "img", X: 0.5, Y: 0.25, Width: 0.25, Height: 0.2, Rotation: 90, Locked: true}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate(%+v) = %v", ok, err)
	}
	spec := ok.Spec(geometry.Size{Width: 400, Height: 500})
	if spec.ID != "a" || !spec.Locked || spec.Position != (geometry.Point{X: 200, Y: 125}) || spec.Size != (geometry.Size{Width: 100, Height: 100}) {
		t.Errorf("Spec = %+v", spec)
	}

	for name, mut := range map[string]func(r *Record){
		"no image":     func(r *Record) { r.ImageRef = "" },
		"nan":          func(r *Record) { r.X = math.NaN() },
		"zero width":   func(r *Record) { r.Width = 0 },
		"rotation 360": func(r *Record) { r.Rotation = 360 },
		"negative rot": func(r *Record) { r.Rotation = -1 },
	} {
		r := ok
		mut(&r)
		if err := r.Validate(); !errors.Is(err, ErrInvalidData) {
			t.Errorf("%s: error = %v, want ErrInvalidData", name, err)
		}
	}
}

func TestOrderedSortsByZIndex(t *testing.T) {
	doc := Document{Stickers: []Record{{ID: "b", ZIndex: 1}, {ID: "c", ZIndex: 2}, {ID: "a", ZIndex: 0}}}
	got := doc.Ordered()
	if got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Errorf("Ordered = %+v", got)
	}
	if doc.Stickers[0].ID != "b" {
		t.Error("Ordered modified the document")
	}
}
