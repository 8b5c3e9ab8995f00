package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventMessage represents a server-initiated event delivered to clients.
type EventMessage struct {
	Type      string      `json:"type,omitempty"`
	Event     string      `json:"event"`
	Channel   string      `json:"channel,omitempty"`
	Seq       int64       `json:"seq,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// RPCError represents a JSON-RPC 2.0 error
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface
func (e *RPCError) Error() string {
	return e.Message
}

// RPC error codes
const (
	InvalidParams = -32602
	InternalError = -32603
)

// Client represents a connected WebSocket client. A client is bound to
// one user channel once authenticated; events for that channel fan out to
// every client bound to it.
type Client struct {
	ID            string
	UserID        string
	Conn          *websocket.Conn
	Authenticated bool
	ConnectedAt   time.Time
	LastActivity  time.Time

	writeMu sync.Mutex
}

// WriteMessage serializes concurrent writes to the websocket connection.
func (c *Client) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}
