package chat

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeTransport is an in-memory Transport. Tests push client lines into in
// and read server lines from out.
type fakeTransport struct {
	in         chan string
	out        chan string
	closed     chan struct{}
	once       sync.Once
	failWrites atomic.Bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan string, 16),
		out:    make(chan string, 256),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadLine() (string, error) {
	select {
	case line := <-f.in:
		return line, nil
	case <-f.closed:
		return "", ErrConnClosed
	}
}

func (f *fakeTransport) WriteLine(line string) error {
	if f.failWrites.Load() {
		return errors.New("write: broken pipe")
	}
	select {
	case f.out <- line:
		return nil
	case <-f.closed:
		return ErrConnClosed
	}
}

func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func newTestConn(t *testing.T) (*Conn, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	c := NewConn(tr, 64, time.Second)
	t.Cleanup(func() { _ = c.Close() })
	return c, tr
}

// registerConn creates a connection already registered under name.
func registerConn(t *testing.T, reg *Registry, name string) (*Conn, *fakeTransport) {
	t.Helper()
	c, tr := newTestConn(t)
	if err := reg.Register(c, name); err != nil {
		t.Fatalf("register(%s) error: %v", name, err)
	}
	return c, tr
}

func waitForLine(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	got := waitForPrefix(t, ch, want)
	if got != want {
		t.Fatalf("expected line %q, got %q", want, got)
	}
}

// waitForPrefix skips lines until one starts with prefix.
func waitForPrefix(t *testing.T, ch <-chan string, prefix string) string {
	t.Helper()
	deadline := time.NewTimer(time.Second)
	defer deadline.Stop()
	for {
		select {
		case s := <-ch:
			if strings.HasPrefix(s, prefix) {
				return s
			}
		case <-deadline.C:
			t.Fatalf("timeout waiting for prefix %q", prefix)
		}
	}
}

func nextLine(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for a line")
		return ""
	}
}

func expectNoLine(t *testing.T, ch <-chan string) {
	t.Helper()
	select {
	case s := <-ch:
		t.Fatalf("unexpected line %q", s)
	case <-time.After(100 * time.Millisecond):
	}
}
