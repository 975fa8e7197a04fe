// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelamos/bookstore-api/internal/admin"
	"github.com/angelamos/bookstore-api/internal/auth"
	"github.com/angelamos/bookstore-api/internal/book"
	"github.com/angelamos/bookstore-api/internal/config"
	"github.com/angelamos/bookstore-api/internal/core"
	"github.com/angelamos/bookstore-api/internal/health"
	"github.com/angelamos/bookstore-api/internal/mailer"
	"github.com/angelamos/bookstore-api/internal/middleware"
	"github.com/angelamos/bookstore-api/internal/notify"
	"github.com/angelamos/bookstore-api/internal/server"
	"github.com/angelamos/bookstore-api/internal/storage"
	"github.com/angelamos/bookstore-api/internal/user"
)

const (
	drainDelay        = 5 * time.Second
	tokenSweepEvery   = 15 * time.Minute
	tokenSweepTimeout = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	tokenManager, err := auth.NewTokenManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("token manager initialized",
		"access_ttl", cfg.JWT.AccessTokenExpire,
		"refresh_ttl", cfg.JWT.RefreshTokenExpire,
	)

	store, err := storage.NewLocalStore(cfg.Storage)
	if err != nil {
		return err
	}

	var mail mailer.Mailer
	if cfg.SMTP.Host != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTP)
	} else {
		logger.Warn("no smtp host configured, mail goes to the log")
		mail = mailer.NewLogMailer(logger)
	}

	hub := notify.NewHub(logger)
	defer hub.Close()

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	tokenRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(
		tokenRepo,
		tokenManager,
		userSvc,
		mail,
		hub,
		cfg.App,
		cfg.Tokens,
	)
	authHandler := auth.NewHandler(authSvc)

	bookRepo := book.NewRepository(db.DB)
	bookSvc := book.NewService(bookRepo, store, hub)
	bookHandler := book.NewHandler(bookSvc)

	notifyHandler := notify.NewHandler(hub)

	healthHandler := health.NewHandler(db, redis)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		WSCount:    hub.ConnectionCount,
	})

	go sweepExpiredTokens(ctx, tokenRepo, logger)

	srv := server.New(server.Config{
		ServerConfig: cfg.Server,
		Logger:       logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))

	healthHandler.RegisterRoutes(router)

	router.Handle(
		"/uploads/*",
		http.StripPrefix(
			"/uploads/",
			http.FileServer(http.Dir(cfg.Storage.Dir)),
		),
	)

	authenticator := middleware.RequireAuth(authSvc)
	adminOnly := middleware.RequireAdmin

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		bookHandler.RegisterRoutes(r, authenticator, adminOnly)
		notifyHandler.RegisterRoutes(r, authenticator)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	healthHandler.SetShutdown(true)

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

// sweepExpiredTokens reaps dead one-time tokens in the background. Expired
// rows are already unusable, this just keeps the table small.
func sweepExpiredTokens(
	ctx context.Context,
	tokens auth.Repository,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(tokenSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sweepCtx, cancel := context.WithTimeout(
			context.Background(),
			tokenSweepTimeout,
		)
		deleted, err := tokens.DeleteExpired(sweepCtx)
		cancel()

		if err != nil {
			logger.Warn("token sweep failed", "error", err)
			continue
		}
		if deleted > 0 {
			logger.Debug("swept expired one-time tokens", "deleted", deleted)
		}
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
