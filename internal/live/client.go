package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 256 * 1024
	sendBuffer = 256
)

type Client struct {
	registry  *Registry
	conn      *websocket.Conn
	SessionID string
	ClientID  string

	room   *Room         // set before joined is closed
	joined chan struct{} // closed once the join was accepted or rejected

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(registry *Registry, conn *websocket.Conn, sessionID, clientID string) *Client {
	return &Client{
		registry:  registry,
		conn:      conn,
		SessionID: sessionID,
		ClientID:  clientID,
		joined:    make(chan struct{}),
		send:      make(chan []byte, sendBuffer),
	}
}

func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.registry.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	select {
	case <-c.joined:
	case <-ctx.Done():
		return
	}
	if c.room == nil {
		return
	}

	c.conn.SetReadLimit(maxMsgSize)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return
			}
			slog.Debug("read error", "error", err, "client", c.ClientID)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid message", "error", err, "client", c.ClientID)
			c.Send(&Message{Type: TypeError, SessionID: c.SessionID, Payload: errorPayload("invalid_request", "malformed message")})
			continue
		}

		msg.ClientID = c.ClientID
		msg.SessionID = c.SessionID

		if reply := c.room.handle(&msg); reply != nil {
			c.Send(reply)
		}
	}
}

func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				slog.Debug("write error", "error", err, "client", c.ClientID)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// Send queues a message for the client. It never blocks; when the buffer is
// full the message is dropped, which is safe because every state message
// carries the full frame.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("client send buffer full, dropping message", "client", c.ClientID)
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// reject tells the client why it could not join and ends its write pump.
func (c *Client) reject(err error) {
	c.Send(&Message{Type: TypeError, SessionID: c.SessionID, Payload: errorPayload(Code(err), err.Error())})
	c.closeSend()
	close(c.joined)
}

func errorPayload(code, message string) json.RawMessage {
	data, _ := json.Marshal(ErrorPayload{Code: code, Message: message})
	return data
}
