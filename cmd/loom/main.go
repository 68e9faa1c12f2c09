package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/loomctl/loom/internal/api"
	"github.com/loomctl/loom/internal/bootstrap"
	"github.com/loomctl/loom/internal/config"
	"github.com/loomctl/loom/internal/entitystore"
	"github.com/loomctl/loom/internal/gateway"
	"github.com/loomctl/loom/internal/httputil"
	"github.com/loomctl/loom/internal/mailer"
	"github.com/loomctl/loom/internal/permission"
	"github.com/loomctl/loom/internal/postgres"
	"github.com/loomctl/loom/internal/pubsub"
	"github.com/loomctl/loom/internal/queryengine"
	"github.com/loomctl/loom/internal/scriptrunner"
	"github.com/loomctl/loom/internal/state"
	"github.com/loomctl/loom/internal/usermgmt"
	"github.com/loomctl/loom/internal/valkey"
	"github.com/loomctl/loom/internal/worker"
)

// Build metadata injected via ldflags at compile time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.IsDevelopment() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", date).
		Str("env", cfg.ServerEnv).
		Msg("Starting Loom")

	ctx := context.Background()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConn, cfg.DatabaseMinConn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	log.Info().Msg("PostgreSQL connected")

	if err := postgres.Migrate(cfg.DatabaseURL, log.Logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Msg("Database migrations complete")

	rdb, err := valkey.Connect(ctx, cfg.ValkeyURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connect valkey: %w", err)
	}
	defer func() { _ = rdb.Close() }()
	log.Info().Msg("Valkey connected")

	firstRun, err := bootstrap.IsFirstRun(ctx, db)
	if err != nil {
		return fmt.Errorf("check first run: %w", err)
	}
	if firstRun {
		log.Info().Msg("First run detected, seeding admin account")
		if err := bootstrap.RunFirstInit(ctx, db, cfg, log.Logger); err != nil {
			return fmt.Errorf("first-run initialization: %w", err)
		}
		log.Info().Msg("First-run initialization complete")
	}

	permStore := permission.NewPGStore(db)
	permCache := permission.NewValkeyCache(rdb)
	permResolver := permission.NewResolver(permStore, permCache, log.Logger)

	userMgmt := usermgmt.NewPGStore(db)
	subs := pubsub.NewPGStore(db, log.Logger)
	entityStore := entitystore.NewStore()
	emailSender := mailer.NewLogSender(log.Logger)

	root := state.New(db, entityStore, subs, scriptrunner.NoopRunner{}, queryengine.NoopEngine{}, emailSender, permResolver, userMgmt)

	pool := worker.NewPool(db, cfg.EffectiveWorkerPoolSize(), log.Logger)
	defer pool.Close()

	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()
	go runMessagePurge(subCtx, subs, cfg.MessageRetention, log.Logger)

	gwCfg := gateway.Config{
		HeartbeatInterval: cfg.SessionHeartbeatInterval,
		PongTimeout:       cfg.SessionPongTimeout,
		DeliveryInterval:  cfg.SessionDeliveryInterval,
		MessageLag:        cfg.SessionMessageLag,
		JWTSecret:         cfg.JWTSecret,
		JWTIssuer:         cfg.JWTIssuer,
		RateLimitWindow:   time.Duration(cfg.RateLimitWSWindowSeconds) * time.Second,
		RateLimitCount:    cfg.RateLimitWSCount,
	}
	gwServer := gateway.NewServer(pool, subs, root, gwCfg, log.Logger)

	app := fiber.New(fiber.Config{
		AppName: "Loom",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			message := "an internal error occurred"
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
				message = e.Message
			} else {
				log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("unhandled error")
			}
			return c.Status(status).JSON(fiber.Map{"error": message})
		},
	})

	app.Use(requestid.New())
	app.Use(httputil.RequestLogger(log.Logger))

	authGroup := app.Group("/auth")
	authGroup.Use(limiter.New(limiter.Config{Max: cfg.RateLimitWSCount, Expiration: time.Duration(cfg.RateLimitWSWindowSeconds) * time.Second}))
	authHandler := &api.AuthHandler{Users: userMgmt, Cfg: cfg}
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/accept-invitation", authHandler.AcceptInvitation)

	healthHandler := &api.HealthHandler{DB: db, Valkey: rdb}
	app.Get("/healthz", healthHandler.Health)

	gatewayHandler := api.NewGatewayHandler(gwServer)
	app.Get("/gateway", gatewayHandler.Upgrade)

	app.Use(func(_ fiber.Ctx) error {
		return fiber.ErrNotFound
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info().Msg("shutting down")
		subCancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	addr := ":" + strconv.Itoa(cfg.ServerPort)
	log.Info().Str("addr", addr).Msg("server listening")
	if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// runMessagePurge periodically deletes message_log rows older than
// retention, so the durable log does not grow without bound. It runs at a
// quarter of the retention window (at least one minute apart), so between
// successful ticks no row outlives roughly 1.25x retention.
func runMessagePurge(ctx context.Context, subs *pubsub.PGStore, retention time.Duration, logger zerolog.Logger) {
	interval := retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := subs.PurgeExpired(ctx, time.Now().Add(-retention))
			if err != nil {
				logger.Warn().Err(err).Msg("message log purge failed")
				continue
			}
			if deleted > 0 {
				logger.Info().Int64("deleted", deleted).Msg("purged expired messages")
			}
		}
	}
}
