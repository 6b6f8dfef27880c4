package chat

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

var helpLines = []string{
	"=== Commands ===",
	"/help - Show this help",
	"/users - List online users",
	"/dm <user> <msg> - Send direct message",
	"/quit - Disconnect",
}

// CommandProcessor executes in-band slash commands.
type CommandProcessor struct {
	reg *Registry
	bc  *Broadcaster

	maxMessageLength int
}

// NewCommandProcessor returns a processor that cuts direct message bodies
// to maxMessageLength runes, the same limit chat lines get (0 disables).
func NewCommandProcessor(reg *Registry, bc *Broadcaster, maxMessageLength int) *CommandProcessor {
	return &CommandProcessor{reg: reg, bc: bc, maxMessageLength: maxMessageLength}
}

// Process runs line on behalf of sender. line is already trimmed and starts
// with CommandPrefix. Unknown commands return NotCommand without any reply.
func (p *CommandProcessor) Process(sender *Conn, username, line string) Disposition {
	start := time.Now()
	name, target, body := splitCommand(line)

	var (
		d     Disposition
		label = "command"
	)
	switch strings.ToLower(name) {
	case "/help":
		p.bc.sendLines(sender, helpLines...)
		d = Handled
	case "/users":
		names := p.reg.Snapshot()
		p.bc.SendTo(sender, fmt.Sprintf("=== Online Users (%d) ===", len(names)))
		p.bc.sendLines(sender, names...)
		d = Handled
	case "/dm":
		p.directMessage(sender, username, target, body)
		label = "dm"
		d = Handled
	case "/quit":
		p.bc.SendTo(sender, msgDisconnecting)
		d = Terminate
	default:
		return NotCommand
	}

	MessagesTotal.WithLabelValues(label).Inc()
	EventProcessingDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	return d
}

func (p *CommandProcessor) directMessage(sender *Conn, from, to, body string) {
	if to == "" || body == "" {
		p.bc.SendTo(sender, msgDMUsage)
		return
	}
	target, ok := p.reg.FindByName(to)
	if !ok {
		p.bc.SendTo(sender, fmt.Sprintf("No user named '%s'. Use /users to see online users.", to))
		return
	}
	body = truncateRunes(body, p.maxMessageLength)
	p.bc.SendTo(target, fmt.Sprintf("[DM from %s] %s", from, body))
	p.bc.SendTo(sender, fmt.Sprintf("[DM to %s] %s", to, body))
}

// splitCommand cuts line into the command name, its first argument and the
// untouched remainder, so "/dm bob  hi  there" keeps the inner spacing of
// "hi  there".
func splitCommand(line string) (name, arg, rest string) {
	name, rest = cutToken(line)
	arg, rest = cutToken(rest)
	return name, arg, rest
}

func cutToken(s string) (tok, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}
