// Package server provides the HTTP server for the handraw drawing service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/VicFreyre/handraw-pipe/internal/app"
	"github.com/VicFreyre/handraw-pipe/internal/logger"
	"github.com/VicFreyre/handraw-pipe/internal/server/api"
	"github.com/VicFreyre/handraw-pipe/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Config holds the server configuration.
type Config struct {
	StaticDir string
	App       *app.App
	Exporter  *app.Exporter
	Store     *store.Store

	// Ingest accepts landmark frames from WebSocket clients.
	Ingest bool
	// Metrics exposes the Prometheus endpoint at /metrics.
	Metrics bool
	// StreamFPS caps the MJPEG preview rate.
	StreamFPS int
}

// Server represents the HTTP server for the handraw application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	a := s.config.App
	if a != nil {
		api.NewSessionHandler(a).Register(s.mux)
		s.mux.Handle("/api/landmarks", NewLandmarksHandler(a, s.config.Ingest))

		// The preview needs camera frames to draw on.
		if a.Camera() != nil {
			s.mux.Handle("/api/stream", NewStreamHandler(a, s.config.StreamFPS))
		}

		if s.config.Metrics {
			s.mux.Handle("/metrics", a.Metrics().Handler())
		}
	}

	if s.config.Exporter != nil && s.config.Store != nil {
		exports := api.NewExportsHandler(s.config.Exporter, s.config.Store.Exports())
		s.mux.Handle("/api/exports", exports)
		s.mux.Handle("/api/exports/", exports)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if a := s.config.App; a != nil {
		response["running"] = a.Running()
		response["enabled"] = a.IsEnabled()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// Long-lived streams and WebSocket connections end with ctx.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.S().Infow("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.S().Info("http server stopped")
		return nil
	}
}
