// Package server provides the sidecar HTTP server that exposes the
// local cache, health, and metrics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"beacon-hq/beacon/pkg/cache"
	"beacon-hq/beacon/pkg/config"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// Server serves cached metric snapshots over HTTP. Dashboards behind
// the same reverse proxy can read the durable-cache endpoint from it
// even while the metrics backend is down.
type Server struct {
	cfg        config.ServerConfig
	store      cache.Store
	metrics    http.Handler
	metricsAt  string
	logger     *slog.Logger
	httpServer *http.Server

	shutdownOnce sync.Once
	mu           sync.Mutex
	isRunning    bool
}

// New creates a Server. metricsHandler may be nil to disable the
// exposition endpoint.
func New(cfg config.ServerConfig, store cache.Store, metricsHandler http.Handler, metricsPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		store:     store,
		metrics:   metricsHandler,
		metricsAt: metricsPath,
		logger:    logger.With("component", "server"),
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting sidecar server", "address", s.cfg.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server, allowing in-flight
// requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		s.isRunning = false
		s.mu.Unlock()
		if !running || s.httpServer == nil {
			return
		}

		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("graceful shutdown failed: %w", err)
			return
		}
		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/v1/cached-metrics/{key}", s.handleCachedMetric)

	if s.metrics != nil && s.metricsAt != "" {
		mux.Handle("GET "+s.metricsAt, s.metrics)
	}

	return mux
}
