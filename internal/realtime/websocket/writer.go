package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
)

// wsConn serializes writes on a single gorilla connection. One writer
// lock covers data frames, control frames and the close handshake, so
// the ping loop and the dispatcher can share the socket safely.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

// WriteJSON marshals v and writes a single text frame under the writer lock.
func (c *wsConn) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.writeMessage(websocket.TextMessage, payload)
}

func (c *wsConn) writeMessage(mt int, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(mt, payload)
}

// ping sends a control ping; callers treat an error as a dead peer.
func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(ctrlTimeout))
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
}

// writeClose sends a close control frame with the given code and reason.
func (c *wsConn) writeClose(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsCloseAckWindow),
	)
}

// Close shuts the underlying socket; safe to call more than once.
func (c *wsConn) Close() error {
	return c.conn.Close()
}
