// Package monitor publishes decoder status over HTTP for out-of-process
// observers: GET /status returns one JSON snapshot, and /ws streams
// snapshots over a WebSocket at a fixed interval.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// StatusFunc supplies the current snapshot. It must be safe to call
// from any goroutine at any rate; the decoder's Status.Snapshot is.
type StatusFunc func() any

// Server serves decoder status on one listen address.
type Server struct {
	statusFn StatusFunc
	interval time.Duration
	log      *slog.Logger

	httpSrv  *http.Server
	upgrader websocket.Upgrader
}

// New creates a monitor server pushing WebSocket updates every
// interval (default 100ms).
func New(statusFn StatusFunc, interval time.Duration, log *slog.Logger) *Server {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		statusFn: statusFn,
		interval: interval,
		log:      log.With("component", "monitor"),
	}
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /ws", s.handleWS)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.httpSrv = &http.Server{Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutdownCtx)
	}()

	s.log.Info("monitor listening", "addr", ln.Addr().String())
	if err := s.httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.statusFn()); err != nil {
		s.log.Warn("status encode", "error", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for range ticker.C {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(s.statusFn()); err != nil {
			return
		}
	}
}
