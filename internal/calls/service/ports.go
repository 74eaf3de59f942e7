package service

import (
	"context"
	"time"

	"voicedesk_backend/internal/calls/repository"
	"voicedesk_backend/internal/ratelimit"

	"github.com/google/uuid"
)

// CallStore is the persistence surface the reconciler needs.
// Satisfied by repository.Repository.
type CallStore interface {
	UpsertStarted(ctx context.Context, p repository.StartedParams) error
	UpsertStub(ctx context.Context, orgID, callID uuid.UUID, vapiCallID string) error
	GetByProviderID(ctx context.Context, orgID uuid.UUID, vapiCallID string) (repository.Call, error)
	GetByID(ctx context.Context, orgID, id uuid.UUID) (repository.Call, error)
	UpdateEnded(ctx context.Context, orgID uuid.UUID, vapiCallID string, endedAt time.Time, durationSeconds *int, costUSD float64) (int64, error)
	UpdateTerminal(ctx context.Context, p repository.TerminalParams) (int64, error)
	UpsertTerminal(ctx context.Context, p repository.TerminalParams) error
	List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]repository.Call, error)
}

// StartLimiter decides whether a tenant may register another call start.
// Satisfied by ratelimit.StartLimiter.
type StartLimiter interface {
	Allow(ctx context.Context, orgID, attemptID uuid.UUID) ratelimit.Decision
}

// ArtifactChecker reports whether a call produced a linked business artifact.
// Satisfied by the tickets and appointments services.
type ArtifactChecker interface {
	ExistsForCall(ctx context.Context, orgID, callID uuid.UUID) (bool, error)
}

// Auditor records the probe entry for a call-start attempt.
// Satisfied by audit.Service.
type Auditor interface {
	RecordCallStartProbe(ctx context.Context, orgID, callID uuid.UUID) error
}

// PostProcessEnqueuer schedules best-effort post-call enrichment.
// Satisfied by scheduler.Client.
type PostProcessEnqueuer interface {
	EnqueueCallPostProcess(ctx context.Context, orgID, callID uuid.UUID) error
}
