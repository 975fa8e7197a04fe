// AngelaMos | 2026
// server.go

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelamos/bookstore-api/internal/config"
)

type Config struct {
	ServerConfig config.ServerConfig
	Logger       *slog.Logger
}

// Server owns the chi router and the http.Server lifecycle. Handlers and
// middleware are mounted by the caller before Start.
type Server struct {
	router *chi.Mux
	http   *http.Server
	logger *slog.Logger
	config config.ServerConfig
}

func New(cfg Config) *Server {
	router := chi.NewRouter()

	return &Server{
		router: router,
		logger: cfg.Logger,
		config: cfg.ServerConfig,
		http: &http.Server{
			Addr:         cfg.ServerConfig.Address(),
			Handler:      router,
			ReadTimeout:  cfg.ServerConfig.ReadTimeout,
			WriteTimeout: cfg.ServerConfig.WriteTimeout,
			IdleTimeout:  cfg.ServerConfig.IdleTimeout,
		},
	}
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)

	if err := s.http.ListenAndServe(); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown waits drainDelay before closing listeners so load balancers can
// observe the instance going unhealthy and stop routing to it.
func (s *Server) Shutdown(ctx context.Context, drainDelay time.Duration) error {
	s.logger.Info("draining connections", "delay", drainDelay)

	select {
	case <-time.After(drainDelay):
	case <-ctx.Done():
	}

	shutdownCtx := ctx
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return s.http.Close()
	}

	s.logger.Info("http server stopped")
	return nil
}
