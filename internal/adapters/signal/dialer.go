package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// HandshakeError means the endpoint answered but refused the upgrade.
type HandshakeError struct {
	Status int
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake status %d: %v", e.Status, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

type WSDialer struct {
	dialer    *websocket.Dialer
	readLimit int64
}

func NewWSDialer(readLimit int64) *WSDialer {
	return &WSDialer{dialer: websocket.DefaultDialer, readLimit: readLimit}
}

func (d *WSDialer) Dial(ctx context.Context, url string) (core.Conn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, &HandshakeError{Status: resp.StatusCode, Err: err}
		}
		return nil, err
	}
	if d.readLimit > 0 {
		ws.SetReadLimit(d.readLimit)
	}
	return &wsConn{conn: ws}, nil
}

// wsConn serializes writers; gorilla allows one concurrent reader and one writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return c.conn.Close()
}
