package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gridduel/go/internal/game/session"
	"github.com/mcdev12/gridduel/go/internal/game/transport"
)

// Server accepts WebSocket connections and hands each one to the session
// registry as a receiver. It also exposes the admin stats endpoint.
type Server struct {
	cfg      Config
	registry *session.Registry
	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	httpSrv  *http.Server
}

// Config holds the server's network and session settings.
type Config struct {
	Port    int
	Session session.Config

	WriteTimeout    int // seconds per frame write, 0 disables
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns the stock server configuration.
func DefaultConfig() Config {
	return Config{
		Port:            8080,
		Session:         session.DefaultConfig(),
		WriteTimeout:    10,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// New creates a server with the given authentication policy. A nil policy
// accepts every identity.
func New(cfg Config, auth session.AuthPolicy, clock clockwork.Clock) *Server {
	return &Server{
		cfg:      cfg,
		registry: session.NewRegistry(cfg.Session, auth, clock),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Registry exposes the session registry, mainly for the admin collaborator
// and tests.
func (s *Server) Registry() *session.Registry { return s.registry }

// Start binds the configured port and begins serving in the background. It
// returns once the listener is active.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("server already started")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleConnection)
	mux.HandleFunc("/stats", s.handleStats)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to bind port %d: %w", s.cfg.Port, err)
	}
	s.listener = ln
	srv := &http.Server{Handler: c.Handler(mux)}
	s.httpSrv = srv

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server failed")
		}
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("server started")
	return nil
}

// Addr reports the bound listen address, useful when Port is 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the HTTP listener down and disconnects every live receiver.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.listener = nil
	s.httpSrv = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	s.registry.Drain()
	log.Info().Msg("server stopped")
	return err
}

// handleConnection upgrades an HTTP request to a WebSocket and registers the
// resulting transport as a receiver.
func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	ws := transport.NewWS(conn, time.Duration(s.cfg.WriteTimeout)*time.Second)
	s.registry.Accept(ws)
}

// handleStats serves the registry snapshot for the admin poller.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("failed to write stats response")
	}
}
