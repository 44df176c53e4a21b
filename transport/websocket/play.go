package websocket

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/connectfour/game/session"
)

// maxFrameSize bounds an inbound protocol frame on /ws/play
const maxFrameSize = session.MaxLineLength

// LineConn carries the line protocol over a WebSocket: every text message
// is one or more newline separated lines.
type LineConn struct {
	conn    *websocket.Conn
	pending []string
}

// NewLineConn wraps an upgraded connection
func NewLineConn(conn *websocket.Conn) *LineConn {
	conn.SetReadLimit(maxFrameSize)
	return &LineConn{conn: conn}
}

// ReadLine implements session.Conn
func (c *LineConn) ReadLine() (string, error) {
	for len(c.pending) == 0 {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		text := strings.TrimSuffix(string(data), "\n")
		c.pending = strings.Split(text, "\n")
	}

	line := c.pending[0]
	c.pending = c.pending[1:]
	return strings.TrimRight(line, "\r"), nil
}

// WriteLine implements session.Conn
func (c *LineConn) WriteLine(line string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// Close implements session.Conn
func (c *LineConn) Close() error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// RemoteAddr implements session.Conn
func (c *LineConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// PlayHandler serves game clients over WebSocket
type PlayHandler struct {
	ctx     context.Context
	gateway *session.Gateway
}

// NewPlayHandler creates a handler whose sessions end when ctx is cancelled
func NewPlayHandler(ctx context.Context, gateway *session.Gateway) *PlayHandler {
	return &PlayHandler{ctx: ctx, gateway: gateway}
}

func (h *PlayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Play] WebSocket upgrade failed: %v", err)
		return
	}

	h.gateway.Serve(h.ctx, NewLineConn(conn))
}
