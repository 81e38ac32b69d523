package live

import (
	"encoding/json"

	"github.com/inamate/stickers/internal/interaction"
	"github.com/inamate/stickers/internal/scene"
)

type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	Seq       uint64          `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	// Client -> server
	TypeInput   = "input"
	TypeCommand = "command"

	// Server -> client
	TypeWelcome = "welcome"
	TypeState   = "state"
	TypeExport  = "export"
	TypeError   = "error"
)

// InputPayload is the payload for input messages: one raw pointer or
// keyboard event in canvas coordinates.
type InputPayload = interaction.Event

// Command names.
const (
	CmdAdd       = "add"
	CmdDuplicate = "duplicate"
	CmdRemove    = "remove"
	CmdLock      = "lock"
	CmdUnlock    = "unlock"
	CmdReorder   = "reorder"
	CmdSelect    = "select"
	CmdUndo      = "undo"
	CmdRedo      = "redo"
	CmdExport    = "export"
	CmdImport    = "import"
)

// CommandPayload is the payload for command messages.
type CommandPayload struct {
	Name      string          `json:"name"`
	StickerID string          `json:"stickerId,omitempty"`
	ImageRef  string          `json:"imageRef,omitempty"`
	Direction scene.Direction `json:"direction,omitempty"`
	Design    json.RawMessage `json:"design,omitempty"`
}

// WelcomePayload is sent once after a client joins.
type WelcomePayload struct {
	ClientID string `json:"clientId"`
	Clients  int    `json:"clients"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
