package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is the narrow send/close capability the registry, router and
// dispatcher work against. Tests swap in fakes.
type Conn interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// WSConn adapts a gorilla websocket connection. Writes are serialized with a
// mutex because gorilla allows at most one concurrent writer.
type WSConn struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex
}

func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{
		id: uuid.NewString(),
		ws: ws,
	}
}

func (c *WSConn) ID() string {
	return c.id
}

func (c *WSConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *WSConn) Close() error {
	return c.ws.Close()
}
