package chat

import "time"

func (c *Conn) writeLoop() {
	defer close(c.writerDone)
	for {
		select {
		case line := <-c.out:
			if err := c.write(line); err != nil {
				c.fail()
				return
			}
		case <-c.done:
			c.drain()
			return
		}
	}
}

// drain flushes whatever is still queued once Close has been requested.
func (c *Conn) drain() {
	for {
		select {
		case line := <-c.out:
			if err := c.write(line); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(line string) error {
	if c.writeTimeout > 0 {
		_ = c.tr.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.tr.WriteLine(line)
}

// fail marks the connection unusable and closes the transport so the
// session's blocked read returns and runs its own cleanup.
func (c *Conn) fail() {
	c.broken.Store(true)
	_ = c.tr.Close()
}
