// Package api exposes configurator sessions over HTTP and websockets.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/inamate/stickers/internal/checkout"
	"github.com/inamate/stickers/internal/interaction"
	"github.com/inamate/stickers/internal/live"
	"github.com/inamate/stickers/internal/scene"
	"github.com/inamate/stickers/internal/serialize"
	"github.com/inamate/stickers/internal/session"
	"github.com/inamate/stickers/internal/view"
)

const maxBodySize = 1 << 20

type Handler struct {
	registry       *live.Registry
	checkout       *checkout.Service
	originPatterns []string
}

// NewHandler creates the HTTP handlers. originPatterns lists the hosts
// allowed to open websockets, e.g. "shop.example.com".
func NewHandler(registry *live.Registry, checkoutSvc *checkout.Service, originPatterns []string) *Handler {
	return &Handler{registry: registry, checkout: checkoutSvc, originPatterns: originPatterns}
}

// Register mounts all routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")

	r.HandleFunc("/sessions", h.Create).Methods("POST")
	r.HandleFunc("/sessions/{sessionId}", h.Get).Methods("GET")
	r.HandleFunc("/sessions/{sessionId}", h.Delete).Methods("DELETE")
	r.HandleFunc("/sessions/{sessionId}/events", h.Events).Methods("POST")
	r.HandleFunc("/sessions/{sessionId}/commands", h.Command).Methods("POST")
	r.HandleFunc("/sessions/{sessionId}/export", h.Export).Methods("GET")
	r.HandleFunc("/sessions/{sessionId}/import", h.Import).Methods("POST")
	r.HandleFunc("/sessions/{sessionId}/checkout", h.Checkout).Methods("POST")
	r.HandleFunc("/checkout/verify", h.Verify).Methods("POST")

	r.HandleFunc("/ws/sessions/{sessionId}", h.WebSocket)
}

type sessionResponse struct {
	ID      string                `json:"id"`
	Config  session.Config        `json:"config"`
	Catalog []session.CatalogItem `json:"catalog"`
	Frame   view.Frame            `json:"frame"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": h.registry.Len()})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cfg session.Config
	if err := decode(r, &cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	room, err := h.registry.Create(cfg)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var resp sessionResponse
	room.Read(func(s *session.Session) error {
		resp = describe(s)
		return nil
	})
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	room, ok := h.room(w, r)
	if !ok {
		return
	}
	var resp sessionResponse
	room.Read(func(s *session.Session) error {
		resp = describe(s)
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(mux.Vars(r)["sessionId"]); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events feeds a batch of input events in order and returns the resulting
// frame. Processing stops at the first invalid event.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	room, ok := h.room(w, r)
	if !ok {
		return
	}
	var events []interaction.Event
	if err := decode(r, &events); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var (
		frame view.Frame
		err   error
	)
	room.Update(func(s *session.Session) error {
		for _, ev := range events {
			if _, err = s.Handle(ev); err != nil {
				break
			}
		}
		frame = s.View()
		return nil
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// Command runs one discrete command. Export replies with the design; every
// other command replies with the new frame.
func (h *Handler) Command(w http.ResponseWriter, r *http.Request) {
	room, ok := h.room(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	reply, err := room.Apply(&live.Message{Type: live.TypeCommand, Payload: body})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if reply != nil && reply.Type == live.TypeExport {
		writeRaw(w, http.StatusOK, reply.Payload)
		return
	}
	h.writeFrame(w, room)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	room, ok := h.room(w, r)
	if !ok {
		return
	}
	var doc serialize.Document
	err := room.Read(func(s *session.Session) error {
		var err error
		doc, err = s.Document()
		return err
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	room, ok := h.room(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := room.Update(func(s *session.Session) error { return s.Import(data) }); err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeFrame(w, room)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	room, ok := h.room(w, r)
	if !ok {
		return
	}
	var item *checkout.LineItem
	err := room.Read(func(s *session.Session) error {
		var err error
		item, err = s.Checkout(h.checkout)
		return err
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var item checkout.LineItem
	if err := decode(r, &item); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	claims, err := h.checkout.Verify(item)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	if _, err := h.registry.Get(sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := live.NewClient(h.registry, conn, sessionID, clientID)

	h.registry.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

func (h *Handler) room(w http.ResponseWriter, r *http.Request) (*live.Room, bool) {
	room, err := h.registry.Get(mux.Vars(r)["sessionId"])
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	return room, true
}

func (h *Handler) writeFrame(w http.ResponseWriter, room *live.Room) {
	var frame view.Frame
	room.Read(func(s *session.Session) error {
		frame = s.View()
		return nil
	})
	writeJSON(w, http.StatusOK, frame)
}

func describe(s *session.Session) sessionResponse {
	return sessionResponse{
		ID:      s.ID(),
		Config:  s.Config(),
		Catalog: s.Catalog(),
		Frame:   s.View(),
	}
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
}

func handleServiceError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": err.Error(), "code": live.Code(err)}
	switch {
	case errors.Is(err, live.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found", "code": "session_not_found"})
	case errors.Is(err, scene.ErrNotFound):
		writeJSON(w, http.StatusNotFound, body)
	case errors.Is(err, scene.ErrLocked),
		errors.Is(err, session.ErrGestureInProgress),
		errors.Is(err, live.ErrRoomClosed):
		writeJSON(w, http.StatusConflict, body)
	case errors.Is(err, scene.ErrCapacityExceeded),
		errors.Is(err, serialize.ErrInvalidData),
		errors.Is(err, checkout.ErrEmptyDesign),
		errors.Is(err, checkout.ErrNoVariant):
		writeJSON(w, http.StatusUnprocessableEntity, body)
	case errors.Is(err, checkout.ErrInvalidToken),
		errors.Is(err, checkout.ErrTampered):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error(), "code": "invalid_token"})
	case errors.Is(err, serialize.ErrInvalidFormat),
		errors.Is(err, interaction.ErrInvalidEvent),
		errors.Is(err, live.ErrUnknownCommand),
		errors.Is(err, session.ErrUnknownImage),
		errors.Is(err, scene.ErrInvalidSticker),
		errors.Is(err, scene.ErrInvalidTransform),
		errors.Is(err, scene.ErrInvalidDirection),
		errors.Is(err, scene.ErrInvalidCanvas):
		writeJSON(w, http.StatusBadRequest, body)
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
