package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Server exposes a Hub at /ws and the current snapshot as JSON at /snapshot
type Server struct {
	hub  *Hub
	srv  *http.Server
	log  zerolog.Logger
	addr string
}

func NewServer(addr string, hub *Hub, log zerolog.Logger) *Server {
	s := &Server{
		hub: hub,
		log: log.With().Str("component", "notify").Logger(),
	}

	mux := http.NewServeMux()
	mux.Handle("GET /ws", hub)
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start listens on the configured address and serves in the background.
// It returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr().String()

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("change feed stopped")
		}
	}()

	s.log.Info().Str("addr", s.addr).Msg("change feed listening")
	return nil
}

// Addr returns the bound address after Start
func (s *Server) Addr() string {
	return s.addr
}

// Shutdown disconnects clients and stops the server, waiting at most
// five seconds
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by http.Server
	s.hub.Close()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.hub.snapshot()); err != nil {
		s.log.Debug().Err(err).Msg("failed to write snapshot")
	}
}
