package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"voicedesk_backend/internal/scheduler"
	"voicedesk_backend/internal/voiceapi"
	"voicedesk_backend/platform/config"
	"voicedesk_backend/platform/db"
	"voicedesk_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	voiceClient := voiceapi.NewClient(cfg, log)
	if voiceClient == nil {
		log.Warn("VOICE_API_BASE_URL not configured; enrichment tasks will no-op")
	}

	worker, err := scheduler.NewWorker(cfg, pool, voiceClient, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, stopping worker")
		worker.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("worker error", "error", err)
		panic("worker error: " + err.Error())
	}
	log.Info("worker stopped")
}
