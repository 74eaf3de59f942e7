package scheduler

import (
	"context"
	"fmt"

	callsrepo "voicedesk_backend/internal/calls/repository"
	"voicedesk_backend/internal/voiceapi"
	"voicedesk_backend/platform/config"
	"voicedesk_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Worker runs the background task server. Currently the only task is
// post-call enrichment: fetch the provider's call record and upgrade rows
// whose cost never got metered over the webhook.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	calls  *callsrepo.Repository
	voice  *voiceapi.Client
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, voice *voiceapi.Client, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		calls:  callsrepo.NewRepository(pool),
		voice:  voice,
		log:    log,
	}

	mux.HandleFunc(TaskCallPostProcess, w.handleCallPostProcess)

	return w, nil
}

// Run starts the worker and blocks until shutdown.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

// Shutdown stops the worker gracefully.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleCallPostProcess(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCallPostProcessPayload(task)
	if err != nil {
		return err
	}

	callID, err := uuid.Parse(payload.CallID)
	if err != nil {
		return err
	}
	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return err
	}

	call, err := w.calls.GetByID(ctx, tenantID, callID)
	if err == callsrepo.ErrCallNotFound {
		// The row is gone; nothing to enrich and a retry will not help.
		w.log.Warn("post process skipped, call row missing",
			"call_id", callID.String(), "org_id", tenantID.String())
		return nil
	}
	if err != nil {
		return err
	}

	details, err := w.voice.GetCall(ctx, call.VapiCallID)
	if err == voiceapi.ErrNotConfigured {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch call details: %w", err)
	}

	if details.Cost == nil || *details.Cost < 0 {
		w.log.Info("post process found no cost",
			"call_id", callID.String(), "org_id", tenantID.String())
		return nil
	}

	rows, err := w.calls.UpdateEnrichment(ctx, tenantID, callID, *details.Cost, details.EndedReason)
	if err != nil {
		return fmt.Errorf("apply enrichment: %w", err)
	}
	if rows > 0 {
		w.log.Info("call cost enriched",
			"call_id", callID.String(), "org_id", tenantID.String(),
			"cost_usd", *details.Cost)
	}
	return nil
}
