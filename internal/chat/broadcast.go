package chat

import "log/slog"

// Broadcaster fans lines out to registered connections. Delivery failures
// are logged and counted but never stop the fan-out, and the Broadcaster
// never unregisters anyone: that is the owning session's job.
type Broadcaster struct {
	reg    *Registry
	logger *slog.Logger
}

func NewBroadcaster(reg *Registry, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{reg: reg, logger: logger}
}

// Broadcast sends msg to every registered connection except exclude (nil
// excludes no one) and returns how many recipients accepted it.
func (b *Broadcaster) Broadcast(msg string, exclude *Conn) int {
	delivered := 0
	for _, c := range b.reg.recipients(exclude) {
		if b.SendTo(c, msg) {
			delivered++
		}
	}
	return delivered
}

// SendTo queues msg for a single connection and reports success.
func (b *Broadcaster) SendTo(c *Conn, msg string) bool {
	if err := c.Send(msg); err != nil {
		SendFailures.Inc()
		b.logger.Debug("send failed", "session", c.ID, "error", err)
		return false
	}
	return true
}

func (b *Broadcaster) sendLines(c *Conn, lines ...string) {
	for _, line := range lines {
		b.SendTo(c, line)
	}
}
