package chat

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// wsTransport carries the line protocol over a WebSocket: every text or
// binary message holds one or more lines.
type wsTransport struct {
	conn    *websocket.Conn
	pending []string
}

// NewWSTransport wraps an upgraded WebSocket. Messages larger than
// maxMessageBytes end the session.
func NewWSTransport(conn *websocket.Conn, maxMessageBytes int) Transport {
	if maxMessageBytes > 0 {
		conn.SetReadLimit(int64(maxMessageBytes))
	}
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadLine() (string, error) {
	for len(t.pending) == 0 {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) || isClosed(err) {
				return "", ErrConnClosed
			}
			return "", fmt.Errorf("ws read: %w", err)
		}
		text := strings.TrimRight(strings.ToValidUTF8(string(data), ""), "\r\n")
		for _, line := range strings.Split(text, "\n") {
			t.pending = append(t.pending, strings.TrimRight(line, "\r"))
		}
	}
	line := t.pending[0]
	t.pending = t.pending[1:]
	return line, nil
}

func (t *wsTransport) WriteLine(line string) error {
	return t.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (t *wsTransport) SetWriteDeadline(d time.Time) error { return t.conn.SetWriteDeadline(d) }
func (t *wsTransport) RemoteAddr() net.Addr              { return t.conn.RemoteAddr() }

func (t *wsTransport) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}
