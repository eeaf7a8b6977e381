// AngelaMos | 2026
// server.go

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rzkfyn/ujikom-app-be/internal/config"
	"github.com/rzkfyn/ujikom-app-be/internal/health"
)

type Config struct {
	ServerConfig  config.ServerConfig
	HealthHandler *health.Handler
	Logger        *slog.Logger
	ServiceName   string
}

type Server struct {
	router *chi.Mux
	http   *http.Server
	health *health.Handler
	logger *slog.Logger
	cfg    config.ServerConfig
}

func New(cfg Config) *Server {
	router := chi.NewRouter()
	router.Use(chimw.Recoverer)
	router.Use(chimw.RealIP)

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "http"
	}

	handler := otelhttp.NewHandler(router, serviceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	return &Server{
		router: router,
		health: cfg.HealthHandler,
		logger: cfg.Logger,
		cfg:    cfg.ServerConfig,
		http: &http.Server{
			Addr:              cfg.ServerConfig.Address(),
			Handler:           handler,
			ReadTimeout:       cfg.ServerConfig.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.ServerConfig.WriteTimeout,
			IdleTimeout:       cfg.ServerConfig.IdleTimeout,
		},
	}
}

func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "address", s.http.Addr)

	if err := s.http.ListenAndServe(); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	return nil
}

// Shutdown marks the instance as shutting down so load balancers stop
// routing to it, waits drainDelay, then stops accepting connections.
func (s *Server) Shutdown(ctx context.Context, drainDelay time.Duration) error {
	if s.health != nil {
		s.health.SetShutdown(true)
	}

	s.logger.Info("draining connections", "delay", drainDelay)

	select {
	case <-time.After(drainDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// RegisterOnShutdown runs fn when Shutdown begins closing listeners.
// Hijacked connections such as websockets are not tracked by http.Server.
func (s *Server) RegisterOnShutdown(fn func()) {
	s.http.RegisterOnShutdown(fn)
}
