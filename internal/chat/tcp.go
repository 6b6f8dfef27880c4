package chat

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

type tcpTransport struct {
	conn     net.Conn
	r        *bufio.Reader
	w        *bufio.Writer
	maxBytes int
}

// NewTCPTransport frames conn as newline-terminated lines. Lines longer
// than maxLineBytes are cut to that length; the excess is discarded.
func NewTCPTransport(conn net.Conn, readBufferSize, maxLineBytes int) Transport {
	if readBufferSize < 16 {
		readBufferSize = 1024
	}
	if maxLineBytes <= 0 {
		maxLineBytes = 4096
	}
	return &tcpTransport{
		conn:     conn,
		r:        bufio.NewReaderSize(conn, readBufferSize),
		w:        bufio.NewWriter(conn),
		maxBytes: maxLineBytes,
	}
}

func (t *tcpTransport) ReadLine() (string, error) {
	return readLine(t.r, t.maxBytes)
}

func (t *tcpTransport) WriteLine(line string) error {
	if _, err := t.w.WriteString(line + "\n"); err != nil {
		return err
	}
	return t.w.Flush()
}

func (t *tcpTransport) SetWriteDeadline(d time.Time) error { return t.conn.SetWriteDeadline(d) }
func (t *tcpTransport) Close() error                      { return t.conn.Close() }
func (t *tcpTransport) RemoteAddr() net.Addr              { return t.conn.RemoteAddr() }

func readLine(r *bufio.Reader, limit int) (string, error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if room := limit - len(buf); room > 0 {
			if len(chunk) > room {
				chunk = chunk[:room]
			}
			buf = append(buf, chunk...)
		}

		switch {
		case err == nil:
			return cleanLine(buf), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == io.EOF && len(buf) > 0:
			// last line without newline
			return cleanLine(buf), nil
		case isClosed(err):
			return "", ErrConnClosed
		default:
			return "", fmt.Errorf("read: %w", err)
		}
	}
}

func cleanLine(b []byte) string {
	return strings.ToValidUTF8(strings.TrimRight(string(b), "\r\n"), "")
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
