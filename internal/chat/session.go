package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Session drives one connection from name negotiation to cleanup.
type Session struct {
	conn   *Conn
	reg    *Registry
	bc     *Broadcaster
	cmds   *CommandProcessor
	logger *slog.Logger

	maxMessageLength int
	name             string
}

func NewSession(conn *Conn, reg *Registry, bc *Broadcaster, cmds *CommandProcessor, maxMessageLength int, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		conn:             conn,
		reg:              reg,
		bc:               bc,
		cmds:             cmds,
		maxMessageLength: maxMessageLength,
		logger:           logger.With("session", conn.ID, "remote", conn.RemoteAddr()),
	}
}

// Run blocks until the session ends. Cleanup runs exactly once on every
// exit path; closing the Conn from elsewhere is how a session is cancelled.
func (s *Session) Run() {
	defer s.close()

	if !s.negotiate() {
		return
	}
	s.join()
	s.loop()
}

func (s *Session) negotiate() bool {
	for {
		s.bc.SendTo(s.conn, promptUsername)
		line, err := s.conn.ReadLine()
		if err != nil {
			s.logReadErr("negotiation ended", err)
			return false
		}

		err = s.reg.Register(s.conn, line)
		switch {
		case err == nil:
			s.name, _ = NormalizeUsername(line)
			return true
		case errors.Is(err, ErrUsernameTaken):
			RegistrationRejections.WithLabelValues("taken").Inc()
			s.bc.SendTo(s.conn, msgNameTaken)
		default:
			RegistrationRejections.WithLabelValues("invalid").Inc()
			s.bc.SendTo(s.conn, msgNameLength)
		}
	}
}

func (s *Session) join() {
	s.logger = s.logger.With("username", s.name)
	s.logger.Info("user registered")

	// The new member sees its own join line too.
	s.bc.Broadcast(fmt.Sprintf("[join] %s has joined the chat.", s.name), nil)
	s.bc.SendTo(s.conn, msgWelcome)
	MessagesTotal.WithLabelValues("join").Inc()
}

func (s *Session) loop() {
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			s.logReadErr("connection ended", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, CommandPrefix) {
			d := s.cmds.Process(s.conn, s.name, line)
			s.logger.Debug("command processed", "disposition", d.String())
			switch d {
			case Terminate:
				return
			case Handled:
				continue
			}
		}
		s.chat(line)
	}
}

func (s *Session) chat(text string) {
	start := time.Now()
	text = truncateRunes(text, s.maxMessageLength)
	s.bc.Broadcast(s.name+": "+text, s.conn)

	MessagesTotal.WithLabelValues("chat").Inc()
	EventProcessingDuration.WithLabelValues("chat").Observe(time.Since(start).Seconds())
}

func (s *Session) close() {
	if name, ok := s.reg.Unregister(s.conn); ok {
		s.bc.Broadcast(fmt.Sprintf("[leave] %s has left the chat.", name), nil)
		MessagesTotal.WithLabelValues("leave").Inc()
		s.logger.Info("user left")
	}
	if err := s.conn.Close(); err != nil && !isClosed(err) {
		s.logger.Debug("close failed", "error", err)
	}
}

func (s *Session) logReadErr(msg string, err error) {
	if errors.Is(err, ErrConnClosed) {
		s.logger.Debug(msg)
		return
	}
	s.logger.Warn(msg, "error", err)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
