package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicedesk_backend/internal/agents"
	"voicedesk_backend/internal/appointments"
	"voicedesk_backend/internal/audit"
	"voicedesk_backend/internal/calls"
	callsrepo "voicedesk_backend/internal/calls/repository"
	callssvc "voicedesk_backend/internal/calls/service"
	"voicedesk_backend/internal/events"
	apphttp "voicedesk_backend/internal/http"
	"voicedesk_backend/internal/http/router"
	"voicedesk_backend/internal/notification"
	"voicedesk_backend/internal/phonelines"
	"voicedesk_backend/internal/ratelimit"
	"voicedesk_backend/internal/scheduler"
	"voicedesk_backend/internal/tickets"
	"voicedesk_backend/platform/config"
	"voicedesk_backend/platform/db"
	"voicedesk_backend/platform/logger"
	"voicedesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	rdb := initRedis(cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	taskClient, closeTasks := initTaskClient(cfg, log)
	if closeTasks != nil {
		defer closeTasks()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	auditModule := audit.NewModule(pool, log)
	auditService := auditModule.Service()

	// Notification subscribes to domain events (not HTTP-facing)
	notificationService := notification.NewService(cfg, log)
	notificationService.Subscribe(eventBus)

	ticketsModule := tickets.NewModule(pool, val, auditService, eventBus)
	appointmentsModule := appointments.NewModule(pool, val, auditService)
	agentsModule := agents.NewModule(pool, val, auditService)
	phoneLinesModule := phonelines.NewModule(pool, val, auditService)

	limiter := ratelimit.NewStartLimiter(rdb, cfg, log)
	callsService := callssvc.NewService(
		callsrepo.NewRepository(pool),
		limiter,
		ticketsModule.Service,
		appointmentsModule.Service,
		auditService,
		taskClient,
		eventBus,
		log,
		cfg.GetRejectedCallIDPrefix(),
	)
	callsModule := calls.NewModule(callsService, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			callsModule,
			ticketsModule,
			appointmentsModule,
			agentsModule,
			phoneLinesModule,
			auditModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initRedis connects the counter store. A missing REDIS_URL is tolerated:
// the rate limiter degrades per its failure policy.
func initRedis(cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; call-start rate limiting degraded")
		return nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL", "error", err)
		panic("invalid REDIS_URL: " + err.Error())
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt)
}

func initTaskClient(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; post-call enrichment disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
