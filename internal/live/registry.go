// Package live hosts configurator sessions for remote clients. A Registry
// owns the sessions; each session sits in a Room that serializes access to it
// and streams state to websocket clients.
package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/inamate/stickers/internal/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrRoomClosed      = errors.New("session closed")
)

// Factory builds a new session from host configuration.
type Factory func(cfg session.Config) (*session.Session, error)

type Registry struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // sessionID -> room
	factory    Factory
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	idleTTL    time.Duration
	now        func() time.Time
}

// NewRegistry creates a registry. Sessions with no clients that stay
// untouched for idleTTL are evicted; zero disables eviction.
func NewRegistry(factory Factory, idleTTL time.Duration) *Registry {
	return &Registry{
		rooms:      make(map[string]*Room),
		factory:    factory,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		idleTTL:    idleTTL,
		now:        time.Now,
	}
}

// Run processes client joins and leaves and evicts idle sessions until ctx
// is done. On return every session is closed.
func (r *Registry) Run(ctx context.Context) {
	var sweep <-chan time.Time
	if r.idleTTL > 0 {
		ticker := time.NewTicker(r.idleTTL / 2)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case client := <-r.register:
			r.addClient(client)
		case client := <-r.unregister:
			r.removeClient(client)
		case <-sweep:
			r.Sweep()
		case <-ctx.Done():
			close(r.done)
			r.closeAll()
			return
		}
	}
}

// Register queues a client to join its session.
func (r *Registry) Register(client *Client) {
	select {
	case r.register <- client:
	case <-r.done:
		client.reject(ErrRoomClosed)
	}
}

// Unregister queues a client to leave its session.
func (r *Registry) Unregister(client *Client) {
	select {
	case r.unregister <- client:
	case <-r.done:
	}
}

// Create starts a new session.
func (r *Registry) Create(cfg session.Config) (*Room, error) {
	s, err := r.factory(cfg)
	if err != nil {
		return nil, err
	}
	room := newRoom(s, r.now)

	r.mu.Lock()
	r.rooms[s.ID()] = room
	n := len(r.rooms)
	r.mu.Unlock()

	slog.Info("session started", "session", s.ID(), "sessions", n)
	return room, nil
}

// Get returns the room for a session id.
func (r *Registry) Get(id string) (*Room, error) {
	r.mu.RLock()
	room, ok := r.rooms[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return room, nil
}

// Delete ends a session and disconnects its clients.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	room, ok := r.rooms[id]
	delete(r.rooms, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	room.close()
	slog.Info("session ended", "session", id)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Sweep evicts sessions that have had no clients and no activity for the
// idle TTL.
func (r *Registry) Sweep() {
	if r.idleTTL <= 0 {
		return
	}
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var evicted []*Room
	for id, room := range r.rooms {
		if room.idleSince(cutoff) {
			delete(r.rooms, id)
			evicted = append(evicted, room)
		}
	}
	r.mu.Unlock()

	for _, room := range evicted {
		room.close()
		slog.Info("session evicted", "session", room.ID())
	}
}

func (r *Registry) addClient(client *Client) {
	room, err := r.Get(client.SessionID)
	if err == nil {
		client.room = room
		if room.addClient(client) {
			close(client.joined)
			slog.Info("client joined", "client", client.ClientID, "session", client.SessionID)
			return
		}
		client.room = nil
		err = ErrRoomClosed
	}
	client.reject(err)
}

func (r *Registry) removeClient(client *Client) {
	if client.room == nil || !client.room.removeClient(client) {
		return
	}
	slog.Info("client left", "client", client.ClientID, "session", client.SessionID)
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	rooms := r.rooms
	r.rooms = make(map[string]*Room)
	r.mu.Unlock()

	for _, room := range rooms {
		room.close()
	}
}
