package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/inamate/stickers/internal/session"
	"github.com/inamate/stickers/internal/view"
)

func newRegistry(t *testing.T, ttl time.Duration) *Registry {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := 0
	return NewRegistry(func(cfg session.Config) (*session.Session, error) {
		n++
		return session.New(cfg, session.Options{ID: fmt.Sprintf("sess_%d", n), Logger: quiet})
	}, ttl)
}

func command(t *testing.T, cmd CommandPayload) *Message {
	t.Helper()
	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatal(err)
	}
	return &Message{Type: TypeCommand, Payload: data}
}

func input(raw string) *Message {
	return &Message{Type: TypeInput, Payload: json.RawMessage(raw)}
}

// fakeClient joins a room without a websocket and collects what it is sent.
func fakeClient(t *testing.T, room *Room, id string) *Client {
	t.Helper()
	c := &Client{ClientID: id, SessionID: room.ID(), joined: make(chan struct{}), send: make(chan []byte, sendBuffer)}
	if !room.addClient(c) {
		t.Fatal("addClient refused")
	}
	return c
}

func drain(c *Client) []Message {
	var out []Message
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var m Message
			json.Unmarshal(data, &m)
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestRoomAppliesAndBroadcasts(t *testing.T) {
	r := newRegistry(t, 0)
	room, err := r.Create(session.Config{})
	if err != nil {
		t.Fatal(err)
	}
	a := fakeClient(t, room, "a")
	b := fakeClient(t, room, "b")
	drain(a)
	drain(b)

	if _, err := room.Apply(command(t, CommandPayload{Name: CmdAdd, ImageRef: "x.png"})); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	for _, c := range []*Client{a, b} {
		msgs := drain(c)
		if len(msgs) != 1 || msgs[0].Type != TypeState {
			t.Fatalf("client %s got %+v, want one state", c.ClientID, msgs)
		}
		var frame view.Frame
		json.Unmarshal(msgs[0].Payload, &frame)
		if len(frame.Stickers) != 1 {
			t.Errorf("frame stickers = %d", len(frame.Stickers))
		}
	}

	room.Apply(command(t, CommandPayload{Name: CmdSelect}))
	drain(a)

	// A click on empty canvas with nothing selected changes nothing and is
	// not broadcast.
	room.Apply(input(`{"type":"pointerdown","x":5,"y":5}`))
	room.Apply(input(`{"type":"keydown","key":"Escape"}`))
	if msgs := drain(a); len(msgs) != 0 {
		t.Errorf("no-op input broadcast %d messages", len(msgs))
	}

	reply, err := room.Apply(command(t, CommandPayload{Name: CmdExport}))
	if err != nil || reply == nil || reply.Type != TypeExport {
		t.Fatalf("export reply = %+v, %v", reply, err)
	}

	if _, err := room.Apply(command(t, CommandPayload{Name: CmdUndo})); err != nil {
		t.Fatal(err)
	}
	var frame view.Frame
	msgs := drain(b)
	json.Unmarshal(msgs[len(msgs)-1].Payload, &frame)
	if len(frame.Stickers) != 0 || !frame.CanRedo {
		t.Errorf("after undo frame = %+v", frame)
	}
}

func TestRoomRejects(t *testing.T) {
	r := newRegistry(t, 0)
	room, _ := r.Create(session.Config{})

	tests := []struct {
		msg  *Message
		code string
	}{
		{&Message{Type: "bogus"}, "unknown_command"},
		{input(`{"type":"wheel"}`), "invalid_event"},
		{input(`not json`), "invalid_event"},
		{command(t, CommandPayload{Name: CmdRemove, StickerID: "nope"}), "not_found"},
		{command(t, CommandPayload{Name: CmdImport, Design: json.RawMessage(`{"version":3}`)}), "invalid_format"},
	}
	for _, tt := range tests {
		reply := room.handle(tt.msg)
		if reply == nil || reply.Type != TypeError {
			t.Errorf("%s: reply = %+v, want error", tt.code, reply)
			continue
		}
		var p ErrorPayload
		json.Unmarshal(reply.Payload, &p)
		if p.Code != tt.code {
			t.Errorf("code = %q, want %q", p.Code, tt.code)
		}
	}
}

func TestRegistryDeleteClosesClients(t *testing.T) {
	r := newRegistry(t, 0)
	room, _ := r.Create(session.Config{})
	c := fakeClient(t, room, "a")

	if err := r.Delete(room.ID()); err != nil {
		t.Fatal(err)
	}
	drain(c)
	if _, ok := <-c.send; ok {
		t.Error("client channel still open")
	}
	if _, err := r.Get(room.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after delete = %v", err)
	}
	if err := r.Delete(room.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Delete = %v", err)
	}
	if room.addClient(&Client{ClientID: "late", send: make(chan []byte, 1)}) {
		t.Error("closed room accepted a client")
	}
	// Sending to a closed client is a no-op.
	c.Send(&Message{Type: TypeState})
}

func TestRegistrySweepEvictsIdleSessions(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newRegistry(t, 10*time.Minute)
	r.now = func() time.Time { return now }

	idle, _ := r.Create(session.Config{})
	watched, _ := r.Create(session.Config{})
	busy, _ := r.Create(session.Config{})
	fakeClient(t, watched, "w")

	now = now.Add(8 * time.Minute)
	busy.Read(func(*session.Session) error { return nil })

	now = now.Add(5 * time.Minute)
	r.Sweep()

	if _, err := r.Get(idle.ID()); err == nil {
		t.Error("idle session survived sweep")
	}
	if _, err := r.Get(watched.ID()); err != nil {
		t.Error("session with a client was evicted")
	}
	if _, err := r.Get(busy.ID()); err != nil {
		t.Error("recently used session was evicted")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}

func TestLeavingClientCancelsItsGesture(t *testing.T) {
	r := newRegistry(t, 0)
	room, _ := r.Create(session.Config{})
	a := fakeClient(t, room, "a")
	b := fakeClient(t, room, "b")
	room.Apply(command(t, CommandPayload{Name: CmdAdd, ImageRef: "x.png"}))

	for _, raw := range []string{`{"type":"pointerdown","x":200,"y":250}`, `{"type":"pointermove","x":220,"y":260}`} {
		msg := input(raw)
		msg.ClientID = "a"
		if _, err := room.Apply(msg); err != nil {
			t.Fatal(err)
		}
	}
	drain(b)

	room.removeClient(a)

	msgs := drain(b)
	if len(msgs) != 1 || msgs[0].Type != TypeState {
		t.Fatalf("b got %+v, want one state", msgs)
	}
	var frame view.Frame
	json.Unmarshal(msgs[0].Payload, &frame)
	if frame.State.Kind.String() != "idle" || frame.Stickers[0].Position.X != 200 {
		t.Errorf("frame after leave = %+v", frame)
	}
	if reply, err := room.Apply(command(t, CommandPayload{Name: CmdExport})); err != nil || reply == nil {
		t.Errorf("export after leave = %+v, %v", reply, err)
	}
}

func TestLastClientLeavingCancelsGesture(t *testing.T) {
	r := newRegistry(t, 0)
	room, _ := r.Create(session.Config{})
	c := fakeClient(t, room, "c")
	room.Apply(command(t, CommandPayload{Name: CmdAdd, ImageRef: "x.png"}))
	room.Apply(input(`{"type":"pointerdown","x":200,"y":250}`))
	room.Apply(input(`{"type":"pointermove","x":100,"y":100}`))

	room.removeClient(c)

	room.Read(func(s *session.Session) error {
		if s.State().Gesture() {
			t.Errorf("state = %v after last client left", s.State().Kind)
		}
		if _, err := s.Export(); err != nil {
			t.Errorf("Export: %v", err)
		}
		return nil
	})
}
