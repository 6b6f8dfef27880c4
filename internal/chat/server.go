package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const acceptBackoff = 50 * time.Millisecond

type Server struct {
	cfg    Config
	logger *slog.Logger
	reg    *Registry
	bc     *Broadcaster
	cmds   *CommandProcessor

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closing  bool
	sessions sync.WaitGroup
	stopOnce sync.Once

	listener      net.Listener
	wsListener    net.Listener
	wsServer      *http.Server
	metricsLn     net.Listener
	metricsServer *http.Server
	upgrader      websocket.Upgrader
}

func NewServer(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	reg := NewRegistry()
	bc := NewBroadcaster(reg, logger)
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		logger: logger,
		reg:    reg,
		bc:     bc,
		cmds:   NewCommandProcessor(reg, bc, cfg.Limits.MaxMessageLength),
		ctx:    ctx,
		cancel: cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.Limits.ReadBufferSize,
			WriteBufferSize: cfg.Limits.ReadBufferSize,
		},
	}
}

// Start binds every configured listener and begins accepting. Nothing is
// accepted if any bind fails.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.Addr, err)
	}

	var wsLn, metricsLn net.Listener
	if s.cfg.Server.WSAddr != "" {
		if wsLn, err = net.Listen("tcp", s.cfg.Server.WSAddr); err != nil {
			ln.Close()
			return fmt.Errorf("listen websocket %s: %w", s.cfg.Server.WSAddr, err)
		}
	}
	if s.cfg.Server.MetricsAddr != "" {
		if metricsLn, err = net.Listen("tcp", s.cfg.Server.MetricsAddr); err != nil {
			ln.Close()
			if wsLn != nil {
				wsLn.Close()
			}
			return fmt.Errorf("listen metrics %s: %w", s.cfg.Server.MetricsAddr, err)
		}
	}

	if !s.track() {
		for _, l := range []net.Listener{ln, wsLn, metricsLn} {
			if l != nil {
				l.Close()
			}
		}
		return errors.New("server is stopped")
	}
	s.listener = ln
	go s.acceptLoop(ln)
	s.logger.Info("server started", "addr", ln.Addr().String())

	if wsLn != nil {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", s.handleWebSocket)
		s.wsListener = wsLn
		s.wsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go s.serveHTTP("websocket", s.wsServer, wsLn)
	}
	if metricsLn != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", s.HealthHandler)
		s.metricsLn = metricsLn
		s.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go s.serveHTTP("metrics", s.metricsServer, metricsLn)
	}
	return nil
}

// Stop closes the listeners, tells every user the server is going away and
// then closes all sessions, waiting at most the configured shutdown timeout
// for their cleanup to finish.
func (s *Server) Stop() {
	s.stopOnce.Do(s.stop)
}

func (s *Server) stop() {
	s.logger.Info("shutting down")

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	timeout := s.cfg.ShutdownTimeout()
	for _, hs := range []*http.Server{s.wsServer, s.metricsServer} {
		if hs == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := hs.Shutdown(ctx); err != nil {
			s.logger.Warn("http shutdown failed", "error", err)
		}
		cancel()
	}

	s.bc.Broadcast(msgShutdown, nil)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("shutdown complete")
	case <-time.After(timeout):
		s.logger.Warn("shutdown timed out", "registered", s.reg.Len())
	}
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) WSAddr() net.Addr {
	if s.wsListener == nil {
		return nil
	}
	return s.wsListener.Addr()
}

func (s *Server) MetricsAddr() net.Addr {
	if s.metricsLn == nil {
		return nil
	}
	return s.metricsLn.Addr()
}

// HealthHandler reports liveness and the number of registered users.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"users":  s.reg.Len(),
	})
}

// track reserves a slot for one more session, or the accept loop, unless
// shutdown has begun.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions.Add(1)
	return true
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.sessions.Done()
	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			select {
			case <-time.After(acceptBackoff):
			case <-s.ctx.Done():
				return
			}
			continue
		}
		if !s.track() {
			nc.Close()
			return
		}
		tr := NewTCPTransport(nc, s.cfg.Limits.ReadBufferSize, s.cfg.Limits.MaxLineBytes)
		go s.serve(tr, "tcp")
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	if !s.track() {
		ws.Close()
		return
	}
	s.serve(NewWSTransport(ws, s.cfg.Limits.MaxLineBytes), "websocket")
}

// serve runs one session to completion. The caller has already called
// track.
func (s *Server) serve(tr Transport, transport string) {
	defer s.sessions.Done()

	conn := NewConn(tr, s.cfg.Limits.OutboundQueue, s.cfg.WriteTimeout())
	stop := context.AfterFunc(s.ctx, func() { _ = conn.Close() })
	defer stop()

	AcceptedConnections.WithLabelValues(transport).Inc()
	s.logger.Info("client connected", "transport", transport, "addr", conn.RemoteAddr(), "session", conn.ID)

	NewSession(conn, s.reg, s.bc, s.cmds, s.cfg.Limits.MaxMessageLength, s.logger).Run()
}

func (s *Server) serveHTTP(name string, hs *http.Server, ln net.Listener) {
	s.logger.Info("http listener started", "name", name, "addr", ln.Addr().String())
	if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("http listener failed", "name", name, "error", err)
	}
}
