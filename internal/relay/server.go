// ABOUTME: Relay HTTP server: listener setup, routing, and graceful shutdown.
// ABOUTME: Hosts the chat streaming endpoint and the health check.

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/chat-relay/internal/auth"
	"github.com/2389/chat-relay/internal/config"
	"github.com/2389/chat-relay/internal/producer"
	"github.com/2389/chat-relay/internal/upstream"
)

const defaultShutdownTimeout = 10 * time.Second

// Server is the chat relay: it accepts chat requests over HTTP and
// streams assistant responses back as SSE wire frames.
type Server struct {
	cfg        *config.Config
	producer   *producer.Producer
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a relay server. assistant may be nil, in which case every
// chat request fails fast with a configuration error response.
func New(cfg *config.Config, assistant upstream.Assistant, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "relay")

	s := &Server{
		cfg:    cfg,
		logger: logger,
	}
	if assistant != nil {
		s.producer = producer.New(assistant, logger)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)

	var chat http.Handler = http.HandlerFunc(s.handleChat)
	if cfg.Auth.JWTSecret != "" {
		verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		chat = auth.Middleware(verifier)(chat)
		logger.Info("bearer auth enabled for /api/chat")
	}
	mux.Handle("/api/chat", s.logRequests(chat))

	s.httpServer = &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: mux,
	}

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.Server.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// logRequests logs method, path, and duration at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
