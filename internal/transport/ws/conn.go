package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn wraps a websocket connection with a stable identifier and a
// write-serialized, deadline-bounded Send. It satisfies the game core's
// connection contract.
type Conn struct {
	id           string
	ws           *websocket.Conn
	mu           sync.Mutex
	writeTimeout time.Duration
}

// newConn wraps an upgraded websocket connection.
//
// Precondition: raw must be a live, upgraded connection.
func newConn(raw *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{
		id:           uuid.NewString(),
		ws:           raw,
		writeTimeout: writeTimeout,
	}
}

// ID returns the connection's identifier, stable for its lifetime.
func (c *Conn) ID() string { return c.id }

// Send writes one text frame. Concurrent callers are serialized; a failure
// affects only this call.
func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Close closes the underlying websocket.
func (c *Conn) Close() error {
	return c.ws.Close()
}
