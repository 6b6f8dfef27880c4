package chat

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Transport is one accepted, line-framed byte stream. ReadLine is called
// only by the owning session and WriteLine only by the outbound writer, so
// implementations need no locking beyond what Close requires.
type Transport interface {
	// ReadLine returns the next line without its terminator, or
	// ErrConnClosed once the stream has ended.
	ReadLine() (string, error)
	WriteLine(line string) error
	SetWriteDeadline(t time.Time) error
	Close() error
	RemoteAddr() net.Addr
}

// Conn is a chat participant's connection. Reads happen on the session
// goroutine; writes are queued and performed by a dedicated writer so a
// stalled peer never blocks the goroutine that is sending to it.
type Conn struct {
	ID string

	tr           Transport
	out          chan string
	done         chan struct{}
	writerDone   chan struct{}
	writeTimeout time.Duration
	broken       atomic.Bool

	// sendMu orders enqueues against close(done), so nothing lands in out
	// after the writer has started its final drain.
	sendMu    sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps tr and starts its outbound writer. queue bounds the number
// of undelivered lines; writeTimeout bounds every single write (0 disables).
func NewConn(tr Transport, queue int, writeTimeout time.Duration) *Conn {
	if queue <= 0 {
		queue = 64
	}
	c := &Conn{
		ID:           uuid.NewString(),
		tr:           tr,
		out:          make(chan string, queue),
		done:         make(chan struct{}),
		writerDone:   make(chan struct{}),
		writeTimeout: writeTimeout,
	}
	go c.writeLoop()
	return c
}

func (c *Conn) RemoteAddr() string {
	if addr := c.tr.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// ReadLine blocks until the peer sends a line, the stream ends, or Close
// is called from any goroutine.
func (c *Conn) ReadLine() (string, error) {
	return c.tr.ReadLine()
}

// Send queues line for delivery. It never blocks: a closed or failed
// connection yields ErrConnClosed, a full queue ErrQueueFull.
func (c *Conn) Send(line string) error {
	if c.broken.Load() {
		return ErrConnClosed
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.out <- line:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the writer after it has flushed what is already queued, then
// closes the transport. Safe to call from several goroutines; only the
// first call does any work.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.closed = true
		close(c.done)
		c.sendMu.Unlock()

		wait := c.writeTimeout
		if wait <= 0 {
			wait = 5 * time.Second
		}
		t := time.NewTimer(wait)
		select {
		case <-c.writerDone:
		case <-t.C:
		}
		t.Stop()

		c.closeErr = c.tr.Close()
	})
	return c.closeErr
}
