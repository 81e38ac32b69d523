package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inamate/stickers/internal/interaction"
	"github.com/inamate/stickers/internal/scene"
	"github.com/inamate/stickers/internal/serialize"
	"github.com/inamate/stickers/internal/session"
)

var ErrUnknownCommand = errors.New("unknown command")

// Room serializes access to one session and fans its state out to every
// connected client. The session itself has no locking; all access goes
// through the room.
type Room struct {
	mu         sync.Mutex
	session    *session.Session
	clients    map[string]*Client // clientID -> client
	seq        uint64
	lastInput  string // client that sent the latest input event
	lastActive time.Time
	closed     bool
	now        func() time.Time
}

func newRoom(s *session.Session, now func() time.Time) *Room {
	return &Room{
		session:    s,
		clients:    make(map[string]*Client),
		lastActive: now(),
		now:        now,
	}
}

func (rm *Room) ID() string { return rm.session.ID() }

// Read runs fn with exclusive access to the session without notifying
// clients.
func (rm *Room) Read(fn func(s *session.Session) error) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.lastActive = rm.now()
	return fn(rm.session)
}

// Update runs fn with exclusive access to the session and broadcasts the new
// state to all clients if fn succeeds.
func (rm *Room) Update(fn func(s *session.Session) error) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.lastActive = rm.now()
	if err := fn(rm.session); err != nil {
		return err
	}
	rm.broadcastStateLocked()
	return nil
}

// Clients returns the number of connected clients.
func (rm *Room) Clients() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.clients)
}

func (rm *Room) addClient(c *Client) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return false
	}
	rm.clients[c.ClientID] = c
	rm.lastActive = rm.now()

	c.Send(rm.messageLocked(TypeWelcome, WelcomePayload{ClientID: c.ClientID, Clients: len(rm.clients)}))
	c.Send(rm.stateMessageLocked())
	return true
}

func (rm *Room) removeClient(c *Client) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, ok := rm.clients[c.ClientID]; !ok {
		return false
	}
	delete(rm.clients, c.ClientID)
	c.closeSend()
	rm.lastActive = rm.now()

	// Nobody is left to finish a gesture started by this client.
	if rm.lastInput == c.ClientID || len(rm.clients) == 0 {
		if rm.session.Cancel() {
			slog.Info("gesture cancelled", "session", rm.session.ID(), "client", c.ClientID)
			rm.broadcastStateLocked()
		}
	}
	return true
}

// close disconnects every client. The room accepts no new clients after.
func (rm *Room) close() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.closed = true
	rm.session.Cancel()
	for id, c := range rm.clients {
		delete(rm.clients, id)
		c.closeSend()
	}
}

func (rm *Room) idleSince(cutoff time.Time) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.clients) == 0 && rm.lastActive.Before(cutoff)
}

// Apply applies one client message and returns the reply for the sender, if
// any. State changes are broadcast to every client.
func (rm *Room) Apply(msg *Message) (*Message, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.lastActive = rm.now()

	var (
		changed bool
		reply   *Message
		err     error
	)
	switch msg.Type {
	case TypeInput:
		var ev InputPayload
		if err = json.Unmarshal(msg.Payload, &ev); err != nil {
			err = fmt.Errorf("%w: %v", interaction.ErrInvalidEvent, err)
			break
		}
		rm.lastInput = msg.ClientID
		changed, err = rm.session.Handle(ev)
	case TypeCommand:
		var cmd CommandPayload
		if err = json.Unmarshal(msg.Payload, &cmd); err != nil {
			err = fmt.Errorf("%w: %v", ErrUnknownCommand, err)
			break
		}
		changed, reply, err = rm.command(cmd)
	default:
		err = fmt.Errorf("%w: message type %q", ErrUnknownCommand, msg.Type)
	}

	if err != nil {
		slog.Debug("message rejected", "session", rm.session.ID(), "client", msg.ClientID, "type", msg.Type, "error", err)
		return nil, err
	}
	if changed {
		rm.broadcastStateLocked()
	}
	if reply != nil {
		rm.seq++
		reply.Seq = rm.seq
	}
	return reply, nil
}

// handle is Apply for websocket clients: errors become error messages.
func (rm *Room) handle(msg *Message) *Message {
	reply, err := rm.Apply(msg)
	if err != nil {
		return &Message{Type: TypeError, SessionID: rm.ID(), Payload: errorPayload(Code(err), err.Error())}
	}
	return reply
}

func (rm *Room) command(cmd CommandPayload) (bool, *Message, error) {
	s := rm.session
	switch cmd.Name {
	case CmdAdd:
		_, err := s.AddSticker(cmd.ImageRef)
		return err == nil, nil, err
	case CmdDuplicate:
		_, err := s.Duplicate(cmd.StickerID)
		return err == nil, nil, err
	case CmdRemove:
		err := s.Remove(cmd.StickerID)
		return err == nil, nil, err
	case CmdLock, CmdUnlock:
		err := s.SetLocked(cmd.StickerID, cmd.Name == CmdLock)
		return err == nil, nil, err
	case CmdReorder:
		dir, err := scene.ParseDirection(string(cmd.Direction))
		if err != nil {
			return false, nil, err
		}
		err = s.Reorder(cmd.StickerID, dir)
		return err == nil, nil, err
	case CmdSelect:
		return s.Select(cmd.StickerID), nil, nil
	case CmdUndo:
		return s.Undo(), nil, nil
	case CmdRedo:
		return s.Redo(), nil, nil
	case CmdExport:
		data, err := s.Export()
		if err != nil {
			return false, nil, err
		}
		return false, &Message{Type: TypeExport, SessionID: s.ID(), Payload: data}, nil
	case CmdImport:
		err := s.Import(cmd.Design)
		return err == nil, nil, err
	}
	return false, nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
}

func (rm *Room) broadcastStateLocked() {
	msg := rm.stateMessageLocked()
	for _, c := range rm.clients {
		c.Send(msg)
	}
}

func (rm *Room) stateMessageLocked() *Message {
	return rm.messageLocked(TypeState, rm.session.View())
}

func (rm *Room) messageLocked(typ string, payload any) *Message {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal payload", "type", typ, "error", err)
		data = nil
	}
	rm.seq++
	return &Message{Type: typ, SessionID: rm.session.ID(), Seq: rm.seq, Payload: data}
}

// Code maps an engine error to a stable wire code.
func Code(err error) string {
	switch {
	case errors.Is(err, scene.ErrNotFound):
		return "not_found"
	case errors.Is(err, scene.ErrLocked):
		return "locked"
	case errors.Is(err, scene.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, serialize.ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, serialize.ErrInvalidData):
		return "invalid_data"
	case errors.Is(err, session.ErrGestureInProgress):
		return "gesture_in_progress"
	case errors.Is(err, session.ErrUnknownImage):
		return "unknown_image"
	case errors.Is(err, interaction.ErrInvalidEvent):
		return "invalid_event"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrRoomClosed):
		return "session_closed"
	}
	return "invalid_request"
}
