// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rzkfyn/ujikom-app-be/internal/admin"
	"github.com/rzkfyn/ujikom-app-be/internal/auth"
	"github.com/rzkfyn/ujikom-app-be/internal/comment"
	"github.com/rzkfyn/ujikom-app-be/internal/config"
	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/graph"
	"github.com/rzkfyn/ujikom-app-be/internal/health"
	"github.com/rzkfyn/ujikom-app-be/internal/mail"
	"github.com/rzkfyn/ujikom-app-be/internal/middleware"
	"github.com/rzkfyn/ujikom-app-be/internal/notification"
	"github.com/rzkfyn/ujikom-app-be/internal/post"
	"github.com/rzkfyn/ujikom-app-be/internal/realtime"
	"github.com/rzkfyn/ujikom-app-be/internal/server"
	"github.com/rzkfyn/ujikom-app-be/internal/storage"
	"github.com/rzkfyn/ujikom-app-be/internal/user"
)

const (
	drainDelay      = 5 * time.Second
	cleanupInterval = time.Hour
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrate := flag.Bool("migrate", false, "apply database migrations and exit")
	genKeys := flag.Bool("genkeys", false, "generate the JWT key pair and exit")
	flag.Parse()

	if err := run(*configPath, *migrate, *genKeys); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string, migrateOnly, genKeys bool) error {
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

	if genKeys {
		return auth.GenerateKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath)
	}

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	telemetry, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("failed to initialize telemetry", "error", err)
	} else if cfg.Otel.Enabled {
		logger.Info("OpenTelemetry tracer initialized",
			"endpoint", cfg.Otel.Endpoint,
		)
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if err := core.Migrate(ctx, db.DB, logger); err != nil {
		return err
	}
	if migrateOnly {
		return db.Close()
	}

	redis, err := core.NewRedis(ctx, cfg.Redis, cfg.App.Name)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	store, err := storage.NewMinioStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	logger.Info("object storage ready",
		"endpoint", cfg.Storage.Endpoint,
		"bucket", cfg.Storage.Bucket,
	)

	bus, err := newBus(cfg, redis)
	if err != nil {
		return err
	}
	logger.Info("realtime broker ready", "broker", cfg.Realtime.Broker)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	tx := core.NewTransactor(db.DB)
	pages := core.PageLimits{
		Default: cfg.Content.DefaultPageSize,
		Max:     cfg.Content.MaxPageSize,
	}
	relay := realtime.NewRelay(bus)

	notificationSvc := notification.NewService(notification.NewRepository(db.DB), relay)
	notificationHandler := notification.NewHandler(notificationSvc, pages)

	graphSvc := graph.NewService(graph.NewRepository(db.DB), tx, notificationSvc)
	graphHandler := graph.NewHandler(graphSvc)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(
		userRepo,
		tx,
		graphSvc,
		notificationSvc,
		store,
		cfg.Content.MaxImageBytes,
	)
	userHandler := user.NewHandler(userSvc)

	mailer := mail.NewSender(cfg.Mail, logger)

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(
		authRepo,
		tx,
		jwtManager,
		userSvc,
		redis.Client,
		mailer,
		cfg.Identity,
	)
	authHandler := auth.NewHandler(authSvc)

	postSvc := post.NewService(
		post.NewRepository(db.DB),
		tx,
		notificationSvc,
		graphSvc,
		store,
		relay,
		cfg.Content,
	)
	postHandler := post.NewHandler(postSvc, pages)

	commentSvc := comment.NewService(
		comment.NewRepository(db.DB),
		tx,
		notificationSvc,
		postSvc,
		store,
		cfg.Content,
	)
	commentHandler := comment.NewHandler(commentSvc, pages)

	hub := realtime.NewHub(
		bus,
		authSvc,
		realtime.NewPresenceRepository(db.DB),
		cfg.Realtime,
		cfg.CORS.AllowedOrigins,
	)
	if err := hub.Run(ctx); err != nil {
		return fmt.Errorf("start realtime hub: %w", err)
	}

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
		health.Dependency{Name: "storage", Checker: store, Optional: true},
		health.Dependency{Name: "broker", Checker: bus, Optional: true},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:     db.Stats,
		RedisStats:  redis.PoolStats,
		DBPing:      db.Ping,
		RedisPing:   redis.Ping,
		StoragePing: store.Ping,
		Connections: hub,
		Broker:      cfg.Realtime.Broker,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
		ServiceName:   cfg.App.Name,
	})
	srv.RegisterOnShutdown(hub.Close)

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Name:     "global",
			Limit:    middleware.PerMinute(cfg.RateLimit.Requests, cfg.RateLimit.Burst),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc)
	optionalAuth := middleware.OptionalAuth(authSvc)
	adminOnly := middleware.RequireAdmin

	strict := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Name:     "credentials",
		Limit:    middleware.PerHour(60, 20),
		KeyFunc:  middleware.KeyByIP,
		FailOpen: true,
	}).Handler

	writes := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Name:     "writes",
		Limit:    middleware.PerMinute(30, 10),
		KeyFunc:  middleware.KeyByUserAndEndpoint,
		FailOpen: true,
	}).Handler

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, strict)

		userHandler.RegisterRoutes(r, authenticator, optionalAuth,
			graphHandler.UserRoutes(authenticator, optionalAuth),
			postHandler.UserRoutes(optionalAuth),
		)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		graphHandler.RegisterRoutes(r, authenticator)
		notificationHandler.RegisterRoutes(r, authenticator)

		postHandler.RegisterRoutes(r, authenticator, optionalAuth, writes,
			commentHandler.PostRoutes(authenticator, optionalAuth),
		)
		commentHandler.RegisterRoutes(r, authenticator)

		hub.RegisterRoutes(r)

		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	go authSvc.StartCleanup(ctx, cleanupInterval)

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

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := bus.Close(); err != nil {
		logger.Error("realtime broker close error", "error", err)
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

// newBus picks the fan-out transport for realtime signals. Only the redis
// and nats brokers reach sockets held by other replicas.
func newBus(cfg *config.Config, redis *core.Redis) (realtime.Bus, error) {
	switch cfg.Realtime.Broker {
	case config.BrokerRedis:
		return realtime.NewRedisBus(redis.Client, cfg.Realtime.Channel), nil
	case config.BrokerNATS:
		return realtime.NewNATSBus(cfg.NATS, cfg.App.Name)
	default:
		return realtime.NewLocalBus(), nil
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
