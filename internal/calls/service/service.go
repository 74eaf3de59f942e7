// Package service contains the call-event reconciler: the orchestration that
// turns provider webhook events into converged call rows. The reconciler is
// tolerant of duplicate and out-of-order deliveries; every persisted effect
// is an upsert or an idempotent update keyed by (org_id, vapi_call_id).
package service

import (
	"context"
	"errors"
	"time"

	"voicedesk_backend/internal/calls/domain"
	"voicedesk_backend/internal/calls/repository"
	"voicedesk_backend/internal/calls/transport"
	"voicedesk_backend/internal/events"
	"voicedesk_backend/platform/logger"

	"github.com/google/uuid"
)

// Service reconciles call lifecycle events against the calls table.
type Service struct {
	store          CallStore
	limiter        StartLimiter
	tickets        ArtifactChecker
	appointments   ArtifactChecker
	auditor        Auditor
	enqueuer       PostProcessEnqueuer
	bus            events.Bus
	log            *logger.Logger
	rejectedPrefix string
}

// NewService creates the reconciler. enqueuer may be nil when no background
// worker is configured; limiter, auditor, and bus are required.
func NewService(
	store CallStore,
	limiter StartLimiter,
	tickets ArtifactChecker,
	appointments ArtifactChecker,
	auditor Auditor,
	enqueuer PostProcessEnqueuer,
	bus events.Bus,
	log *logger.Logger,
	rejectedPrefix string,
) *Service {
	return &Service{
		store:          store,
		limiter:        limiter,
		tickets:        tickets,
		appointments:   appointments,
		auditor:        auditor,
		enqueuer:       enqueuer,
		bus:            bus,
		log:            log,
		rejectedPrefix: rejectedPrefix,
	}
}

// ProcessEvent reconciles a single lifecycle event for the given tenant. The
// returned envelope carries the outcome; transport errors never surface as
// Go errors because the HTTP layer answers 200 regardless.
func (s *Service) ProcessEvent(ctx context.Context, orgID uuid.UUID, req transport.CallEventRequest) transport.EventResponse {
	if err := domain.ValidateProviderCallID(req.VapiCallID, s.rejectedPrefix); err != nil {
		s.log.CallEvent("call_event_rejected", orgID.String(), req.VapiCallID,
			"call_id", req.CallID, "reason", "missing_or_placeholder_vapi_call_id")
		return transport.Failure(transport.CodeMissingVapiCallID, "vapi_call_id is required and must not use the legacy placeholder shape")
	}

	callID, err := uuid.Parse(req.CallID)
	if err != nil {
		return transport.Failure(transport.CodeValidationFailed, "call_id must be a UUID")
	}

	switch req.Event {
	case transport.EventStarted:
		return s.handleStarted(ctx, orgID, callID, req)
	case transport.EventEnded:
		return s.handleEnded(ctx, orgID, callID, req)
	default:
		return transport.Failure(transport.CodeValidationFailed, "event must be started or ended")
	}
}

func (s *Service) handleStarted(ctx context.Context, orgID, callID uuid.UUID, req transport.CallEventRequest) transport.EventResponse {
	// The probe row is audit trail only; the limiter below is the source of
	// truth for the decision. A failed probe insert must not block the call.
	if err := s.auditor.RecordCallStartProbe(ctx, orgID, callID); err != nil {
		s.log.CallEvent("call_start_probe_failed", orgID.String(), req.VapiCallID,
			"call_id", callID.String(), "error", err.Error())
	}

	decision := s.limiter.Allow(ctx, orgID, callID)
	if !decision.Allowed {
		s.log.CallEvent("call_start_rate_limited", orgID.String(), req.VapiCallID,
			"call_id", callID.String(), "count", decision.Count, "limit", decision.Limit)
		s.bus.Publish(ctx, events.CallRateLimited{
			BaseEvent: events.NewBaseEvent(),
			CallID:    callID,
			TenantID:  orgID,
			Count:     decision.Count,
			Limit:     decision.Limit,
		})
		return transport.RateLimited("too many call starts, please retry later")
	}
	if decision.Degraded {
		s.log.CallEvent("call_start_limit_skipped", orgID.String(), req.VapiCallID,
			"call_id", callID.String())
	}

	cost, source := domain.ExtractCost(req.CostUSD, req.Meta)
	payload := domain.BuildPayload(req.Meta, source)

	err := s.store.UpsertStarted(ctx, repository.StartedParams{
		ID:         callID,
		VapiCallID: req.VapiCallID,
		OrgID:      orgID,
		CallType:   "voice",
		Direction:  "inbound",
		StartedAt:  time.UnixMilli(req.TS).UTC(),
		CostUSD:    cost,
		RawPayload: payload,
	})
	if err != nil {
		s.log.DatabaseError("calls.upsert_started", err)
		return transport.Failure(transport.CodeDBError, nil)
	}

	s.log.CallEvent("call_started", orgID.String(), req.VapiCallID,
		"call_id", callID.String(), "cost_source", string(source))
	s.bus.Publish(ctx, events.CallStarted{
		BaseEvent:  events.NewBaseEvent(),
		CallID:     callID,
		VapiCallID: req.VapiCallID,
		TenantID:   orgID,
	})

	return transport.Success(callID.String(), "")
}

func (s *Service) handleEnded(ctx context.Context, orgID, callID uuid.UUID, req transport.CallEventRequest) transport.EventResponse {
	call, err := s.store.GetByProviderID(ctx, orgID, req.VapiCallID)
	if errors.Is(err, repository.ErrCallNotFound) {
		// Out-of-order delivery: "ended" arrived before "started". Create a
		// stub so the terminal state has a row to land on.
		s.log.CallEvent("call_ended_before_started", orgID.String(), req.VapiCallID,
			"call_id", callID.String())
		if err := s.store.UpsertStub(ctx, orgID, callID, req.VapiCallID); err != nil {
			s.log.DatabaseError("calls.upsert_stub", err)
			return transport.Failure(transport.CodeDBError, nil)
		}
		call, err = s.store.GetByProviderID(ctx, orgID, req.VapiCallID)
	}
	if err != nil {
		s.log.DatabaseError("calls.get_by_provider_id", err)
		return transport.Failure(transport.CodeDBError, nil)
	}

	duration := s.resolveDuration(call, req)
	cost, source := domain.ExtractCost(req.CostUSD, req.Meta)
	endedAt := time.UnixMilli(req.TS).UTC()

	if _, err := s.store.UpdateEnded(ctx, orgID, req.VapiCallID, endedAt, req.DurationSeconds, cost); err != nil {
		s.log.DatabaseError("calls.update_ended", err)
		return transport.Failure(transport.CodeDBError, nil)
	}

	hasArtifact := s.hasArtifact(ctx, orgID, call.ID)

	state := domain.ClassifyCompletion(duration, hasArtifact)
	state, corrected := domain.EnforceArtifactInvariant(state, hasArtifact)
	if corrected {
		s.log.CallEvent("completion_state_corrected", orgID.String(), req.VapiCallID,
			"call_id", call.ID.String(), "corrected_to", string(state))
	}

	payload := domain.MergePayload(call.RawPayload, domain.BuildPayload(req.Meta, source))
	if domain.LongDuration(duration) {
		s.log.CallEvent("call_long_duration", orgID.String(), req.VapiCallID,
			"call_id", call.ID.String(), "duration_seconds", duration)
		payload = domain.FlagLongDuration(payload)
	}

	params := repository.TerminalParams{
		ID:              call.ID,
		VapiCallID:      req.VapiCallID,
		OrgID:           orgID,
		EndedAt:         endedAt,
		DurationSeconds: req.DurationSeconds,
		CostUSD:         cost,
		CompletionState: string(state),
		RawPayload:      payload,
	}

	rows, err := s.store.UpdateTerminal(ctx, params)
	if err != nil {
		s.log.DatabaseError("calls.update_terminal", err)
		return transport.Failure(transport.CodeDBError, nil)
	}
	if rows == 0 {
		// The row vanished between fetch and update. Re-assert the terminal
		// state through the conflict target so the event is never lost.
		s.log.CallEvent("call_terminal_update_missed", orgID.String(), req.VapiCallID,
			"call_id", call.ID.String())
		if err := s.store.UpsertTerminal(ctx, params); err != nil {
			s.log.DatabaseError("calls.upsert_terminal", err)
			return transport.Failure(transport.CodeDBError, nil)
		}
	}

	if source == domain.CostSourceNoMeter && s.enqueuer != nil {
		if err := s.enqueuer.EnqueueCallPostProcess(ctx, orgID, call.ID); err != nil {
			s.log.CallEvent("call_post_process_enqueue_failed", orgID.String(), req.VapiCallID,
				"call_id", call.ID.String(), "error", err.Error())
		}
	}

	s.log.CallEvent("call_ended", orgID.String(), req.VapiCallID,
		"call_id", call.ID.String(), "completion_state", string(state),
		"cost_usd", cost, "cost_source", string(source))
	s.bus.Publish(ctx, events.CallEnded{
		BaseEvent:       events.NewBaseEvent(),
		CallID:          call.ID,
		VapiCallID:      req.VapiCallID,
		TenantID:        orgID,
		CompletionState: string(state),
		CostUSD:         cost,
	})

	return transport.Success(call.ID.String(), string(state))
}

// resolveDuration prefers the client-reported duration; falls back to the
// start timestamp already on the row, then to zero.
func (s *Service) resolveDuration(call repository.Call, req transport.CallEventRequest) int {
	if req.DurationSeconds != nil {
		return *req.DurationSeconds
	}
	if call.StartedAt != nil {
		d := int(time.UnixMilli(req.TS).UTC().Sub(*call.StartedAt).Seconds())
		if d > 0 {
			return d
		}
	}
	return 0
}

// hasArtifact checks tickets then appointments. Lookup failures are logged
// and treated as "no artifact": a degraded classification beats a failed
// webhook.
func (s *Service) hasArtifact(ctx context.Context, orgID, callID uuid.UUID) bool {
	if s.tickets != nil {
		ok, err := s.tickets.ExistsForCall(ctx, orgID, callID)
		if err != nil {
			s.log.DatabaseError("tickets.exists_for_call", err)
		} else if ok {
			return true
		}
	}
	if s.appointments != nil {
		ok, err := s.appointments.ExistsForCall(ctx, orgID, callID)
		if err != nil {
			s.log.DatabaseError("appointments.exists_for_call", err)
		} else if ok {
			return true
		}
	}
	return false
}

// GetCall returns a single call scoped to the tenant.
func (s *Service) GetCall(ctx context.Context, orgID, id uuid.UUID) (repository.Call, error) {
	return s.store.GetByID(ctx, orgID, id)
}

// ListCalls returns the tenant's calls, newest first.
func (s *Service) ListCalls(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]repository.Call, error) {
	return s.store.List(ctx, orgID, limit, offset)
}
