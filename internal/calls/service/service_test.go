package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"voicedesk_backend/internal/calls/repository"
	"voicedesk_backend/internal/calls/transport"
	"voicedesk_backend/internal/events"
	"voicedesk_backend/internal/ratelimit"
	"voicedesk_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	calls map[string]repository.Call

	upsertStartedErr error
	updateEndedErr   error
	terminalRows     int64
	terminalRowsSet  bool

	startedParams  []repository.StartedParams
	stubCalls      int
	terminalParams []repository.TerminalParams
	upsertTerminal []repository.TerminalParams
}

func newFakeStore() *fakeStore {
	return &fakeStore{calls: make(map[string]repository.Call)}
}

func (f *fakeStore) key(orgID uuid.UUID, vapiCallID string) string {
	return orgID.String() + "/" + vapiCallID
}

func (f *fakeStore) UpsertStarted(_ context.Context, p repository.StartedParams) error {
	if f.upsertStartedErr != nil {
		return f.upsertStartedErr
	}
	f.startedParams = append(f.startedParams, p)
	started := p.StartedAt
	f.calls[f.key(p.OrgID, p.VapiCallID)] = repository.Call{
		ID:         p.ID,
		VapiCallID: p.VapiCallID,
		OrgID:      p.OrgID,
		CallType:   p.CallType,
		Direction:  p.Direction,
		StartedAt:  &started,
		RawPayload: p.RawPayload,
	}
	return nil
}

func (f *fakeStore) UpsertStub(_ context.Context, orgID, callID uuid.UUID, vapiCallID string) error {
	f.stubCalls++
	k := f.key(orgID, vapiCallID)
	if _, ok := f.calls[k]; !ok {
		f.calls[k] = repository.Call{ID: callID, VapiCallID: vapiCallID, OrgID: orgID, CallType: "voice", Direction: "inbound"}
	}
	return nil
}

func (f *fakeStore) GetByProviderID(_ context.Context, orgID uuid.UUID, vapiCallID string) (repository.Call, error) {
	call, ok := f.calls[f.key(orgID, vapiCallID)]
	if !ok {
		return repository.Call{}, repository.ErrCallNotFound
	}
	return call, nil
}

func (f *fakeStore) GetByID(_ context.Context, orgID, id uuid.UUID) (repository.Call, error) {
	for _, c := range f.calls {
		if c.OrgID == orgID && c.ID == id {
			return c, nil
		}
	}
	return repository.Call{}, repository.ErrCallNotFound
}

func (f *fakeStore) UpdateEnded(_ context.Context, orgID uuid.UUID, vapiCallID string, endedAt time.Time, durationSeconds *int, costUSD float64) (int64, error) {
	if f.updateEndedErr != nil {
		return 0, f.updateEndedErr
	}
	k := f.key(orgID, vapiCallID)
	call, ok := f.calls[k]
	if !ok {
		return 0, nil
	}
	call.EndedAt = &endedAt
	if durationSeconds != nil {
		call.DurationSeconds = durationSeconds
	}
	call.CostUSD = &costUSD
	f.calls[k] = call
	return 1, nil
}

func (f *fakeStore) UpdateTerminal(_ context.Context, p repository.TerminalParams) (int64, error) {
	f.terminalParams = append(f.terminalParams, p)
	if f.terminalRowsSet {
		return f.terminalRows, nil
	}
	k := f.key(p.OrgID, p.VapiCallID)
	call, ok := f.calls[k]
	if !ok {
		return 0, nil
	}
	state := p.CompletionState
	cost := p.CostUSD
	call.CompletionState = &state
	call.CostUSD = &cost
	call.RawPayload = p.RawPayload
	f.calls[k] = call
	return 1, nil
}

func (f *fakeStore) UpsertTerminal(_ context.Context, p repository.TerminalParams) error {
	f.upsertTerminal = append(f.upsertTerminal, p)
	state := p.CompletionState
	f.calls[f.key(p.OrgID, p.VapiCallID)] = repository.Call{
		ID: p.ID, VapiCallID: p.VapiCallID, OrgID: p.OrgID,
		CompletionState: &state, RawPayload: p.RawPayload,
	}
	return nil
}

func (f *fakeStore) List(_ context.Context, orgID uuid.UUID, limit, offset int) ([]repository.Call, error) {
	var out []repository.Call
	for _, c := range f.calls {
		if c.OrgID == orgID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeLimiter struct {
	decision ratelimit.Decision
	calls    int
}

func (f *fakeLimiter) Allow(_ context.Context, _, _ uuid.UUID) ratelimit.Decision {
	f.calls++
	return f.decision
}

type fakeChecker struct {
	exists bool
	err    error
	calls  int
}

func (f *fakeChecker) ExistsForCall(_ context.Context, _, _ uuid.UUID) (bool, error) {
	f.calls++
	return f.exists, f.err
}

type fakeAuditor struct {
	err   error
	calls int
}

func (f *fakeAuditor) RecordCallStartProbe(_ context.Context, _, _ uuid.UUID) error {
	f.calls++
	return f.err
}

type fakeEnqueuer struct {
	calls int
	err   error
}

func (f *fakeEnqueuer) EnqueueCallPostProcess(_ context.Context, _, _ uuid.UUID) error {
	f.calls++
	return f.err
}

type fixture struct {
	svc          *Service
	store        *fakeStore
	limiter      *fakeLimiter
	tickets      *fakeChecker
	appointments *fakeChecker
	auditor      *fakeAuditor
	enqueuer     *fakeEnqueuer
	orgID        uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.New("development")
	f := &fixture{
		store:        newFakeStore(),
		limiter:      &fakeLimiter{decision: ratelimit.Decision{Allowed: true, Count: 1, Limit: 10}},
		tickets:      &fakeChecker{},
		appointments: &fakeChecker{},
		auditor:      &fakeAuditor{},
		enqueuer:     &fakeEnqueuer{},
		orgID:        uuid.New(),
	}
	f.svc = NewService(f.store, f.limiter, f.tickets, f.appointments, f.auditor, f.enqueuer,
		events.NewInMemoryBus(log), log, "webcall:")
	return f
}

func startedRequest(vapiCallID string) transport.CallEventRequest {
	return transport.CallEventRequest{
		CallID:     uuid.NewString(),
		VapiCallID: vapiCallID,
		Event:      transport.EventStarted,
		TS:         time.Now().UnixMilli(),
		Meta:       map[string]any{"channel": "web"},
	}
}

func endedRequest(callID, vapiCallID string, durationSeconds int) transport.CallEventRequest {
	return transport.CallEventRequest{
		CallID:          callID,
		VapiCallID:      vapiCallID,
		Event:           transport.EventEnded,
		TS:              time.Now().UnixMilli(),
		DurationSeconds: &durationSeconds,
	}
}

func TestProcessEventRejectsMissingProviderCallID(t *testing.T) {
	f := newFixture(t)

	for _, id := range []string{"", "   ", "webcall:" + uuid.NewString()} {
		resp := f.svc.ProcessEvent(context.Background(), f.orgID, startedRequest(id))
		if resp.OK {
			t.Fatalf("expected rejection for %q", id)
		}
		if resp.Error == nil || resp.Error.Code != transport.CodeMissingVapiCallID {
			t.Fatalf("expected MISSING_VAPI_CALL_ID for %q, got %+v", id, resp.Error)
		}
	}
	if len(f.store.startedParams) != 0 {
		t.Fatalf("rejected events must not reach the store")
	}
}

func TestStartedUpsertIsIdempotent(t *testing.T) {
	f := newFixture(t)
	req := startedRequest("vapi-abc")

	first := f.svc.ProcessEvent(context.Background(), f.orgID, req)
	second := f.svc.ProcessEvent(context.Background(), f.orgID, req)

	if !first.OK || !second.OK {
		t.Fatalf("expected both deliveries to succeed: %+v %+v", first, second)
	}
	if len(f.store.calls) != 1 {
		t.Fatalf("duplicate delivery must converge onto one row, got %d", len(f.store.calls))
	}
	if f.auditor.calls != 2 {
		t.Fatalf("each attempt leaves an audit probe, got %d", f.auditor.calls)
	}
}

func TestStartedDeniedWhenRateLimited(t *testing.T) {
	f := newFixture(t)
	f.limiter.decision = ratelimit.Decision{Allowed: false, Count: 11, Limit: 10}

	resp := f.svc.ProcessEvent(context.Background(), f.orgID, startedRequest("vapi-abc"))

	if resp.OK {
		t.Fatal("expected denial")
	}
	if resp.Error == nil || resp.Error.Code != transport.CodeRateLimitedCallStart {
		t.Fatalf("expected RATE_LIMITED_CALL_START, got %+v", resp.Error)
	}
	if resp.Error.Recoverable == nil || *resp.Error.Recoverable {
		t.Fatal("rate limit denial must be marked non-recoverable")
	}
	if resp.Action == nil || resp.Action.Type != transport.ActionEndCall {
		t.Fatalf("expected END_CALL action, got %+v", resp.Action)
	}
	if len(f.store.startedParams) != 0 {
		t.Fatal("denied start must not persist a call row")
	}
	if f.auditor.calls != 1 {
		t.Fatal("audit probe recorded even for denied attempts")
	}
}

func TestStartedProbeFailureDoesNotBlockCall(t *testing.T) {
	f := newFixture(t)
	f.auditor.err = errors.New("insert failed")

	resp := f.svc.ProcessEvent(context.Background(), f.orgID, startedRequest("vapi-abc"))

	if !resp.OK {
		t.Fatalf("probe failure must not block the call: %+v", resp)
	}
	if f.limiter.calls != 1 {
		t.Fatal("limiter still consulted after probe failure")
	}
}

func TestStartedDBErrorEnvelope(t *testing.T) {
	f := newFixture(t)
	f.store.upsertStartedErr = errors.New("connection refused")

	resp := f.svc.ProcessEvent(context.Background(), f.orgID, startedRequest("vapi-abc"))

	if resp.OK {
		t.Fatal("expected failure envelope")
	}
	if resp.Error.Code != transport.CodeDBError {
		t.Fatalf("expected DB_ERROR, got %s", resp.Error.Code)
	}
}

func TestStartedCostPrecedence(t *testing.T) {
	f := newFixture(t)
	clientCost := 1.25
	req := startedRequest("vapi-abc")
	req.CostUSD = &clientCost
	req.Meta = map[string]any{"cost": 9.99}

	if resp := f.svc.ProcessEvent(context.Background(), f.orgID, req); !resp.OK {
		t.Fatalf("unexpected failure: %+v", resp)
	}

	p := f.store.startedParams[0]
	if p.CostUSD != 1.25 {
		t.Fatalf("client cost must win, got %v", p.CostUSD)
	}
	if src := p.RawPayload["cost_source"]; src != "CLIENT" {
		t.Fatalf("expected CLIENT cost source, got %v", src)
	}
}

func TestEndedOutOfOrderCreatesStub(t *testing.T) {
	f := newFixture(t)
	callID := uuid.NewString()

	resp := f.svc.ProcessEvent(context.Background(), f.orgID, endedRequest(callID, "vapi-late", 30))

	if !resp.OK {
		t.Fatalf("out-of-order ended must succeed: %+v", resp)
	}
	if f.store.stubCalls != 1 {
		t.Fatalf("expected a stub insert, got %d", f.store.stubCalls)
	}
	if resp.CompletionState == "" {
		t.Fatal("completion state must be set for an out-of-order ended event")
	}
}

func TestEndedClassification(t *testing.T) {
	tests := []struct {
		name        string
		duration    int
		hasArtifact bool
		want        string
	}{
		{"instant hangup", 5, false, "abandoned"},
		{"instant hangup with artifact", 8, true, "abandoned"},
		{"short without artifact", 10, false, "abandoned"},
		{"artifact above threshold", 9, true, "completed"},
		// 15s without artifact classifies as partial, then the invariant
		// pass corrects it down because no artifact is linked.
		{"partial corrected without artifact", 15, false, "abandoned"},
		{"long without artifact", 600, false, "abandoned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.tickets.exists = tt.hasArtifact
			req := startedRequest("vapi-cls")
			if resp := f.svc.ProcessEvent(context.Background(), f.orgID, req); !resp.OK {
				t.Fatalf("start failed: %+v", resp)
			}

			resp := f.svc.ProcessEvent(context.Background(), f.orgID, endedRequest(req.CallID, "vapi-cls", tt.duration))
			if !resp.OK {
				t.Fatalf("ended failed: %+v", resp)
			}
			if resp.CompletionState != tt.want {
				t.Fatalf("duration=%d artifact=%v: got %s, want %s", tt.duration, tt.hasArtifact, resp.CompletionState, tt.want)
			}
		})
	}
}

func TestEndedArtifactLookupFailureTreatedAsAbsent(t *testing.T) {
	f := newFixture(t)
	f.tickets.err = errors.New("timeout")
	f.appointments.err = errors.New("timeout")
	req := startedRequest("vapi-deg")
	f.svc.ProcessEvent(context.Background(), f.orgID, req)

	resp := f.svc.ProcessEvent(context.Background(), f.orgID, endedRequest(req.CallID, "vapi-deg", 60))

	if !resp.OK {
		t.Fatalf("lookup failure must not fail the event: %+v", resp)
	}
	if resp.CompletionState != "abandoned" {
		t.Fatalf("degraded lookup classifies without artifact, got %s", resp.CompletionState)
	}
}

func TestEndedAppointmentCountsAsArtifact(t *testing.T) {
	f := newFixture(t)
	f.appointments.exists = true
	req := startedRequest("vapi-appt")
	f.svc.ProcessEvent(context.Background(), f.orgID, req)

	resp := f.svc.ProcessEvent(context.Background(), f.orgID, endedRequest(req.CallID, "vapi-appt", 60))

	if resp.CompletionState != "completed" {
		t.Fatalf("appointment is an artifact, got %s", resp.CompletionState)
	}
	if f.tickets.calls != 1 {
		t.Fatal("ticket lookup runs first")
	}
}

func TestEndedZeroRowsFallsBackToUpsert(t *testing.T) {
	f := newFixture(t)
	req := startedRequest("vapi-gone")
	f.svc.ProcessEvent(context.Background(), f.orgID, req)
	f.store.terminalRowsSet = true
	f.store.terminalRows = 0

	resp := f.svc.ProcessEvent(context.Background(), f.orgID, endedRequest(req.CallID, "vapi-gone", 30))

	if !resp.OK {
		t.Fatalf("fallback must succeed: %+v", resp)
	}
	if len(f.store.upsertTerminal) != 1 {
		t.Fatalf("expected defensive terminal upsert, got %d", len(f.store.upsertTerminal))
	}
}

func TestEndedMergesStartedMeta(t *testing.T) {
	f := newFixture(t)
	req := startedRequest("vapi-merge")
	req.Meta = map[string]any{"channel": "web", "agent": "luna"}
	f.svc.ProcessEvent(context.Background(), f.orgID, req)

	end := endedRequest(req.CallID, "vapi-merge", 30)
	end.Meta = map[string]any{"agent": "nova", "reason": "hangup"}
	if resp := f.svc.ProcessEvent(context.Background(), f.orgID, end); !resp.OK {
		t.Fatalf("ended failed: %+v", resp)
	}

	payload := f.store.terminalParams[0].RawPayload
	meta, _ := payload["meta"].(map[string]any)
	if meta == nil {
		t.Fatal("merged payload missing meta")
	}
	if meta["channel"] != "web" {
		t.Fatalf("started-only field must survive the merge, got %v", meta["channel"])
	}
	if meta["agent"] != "nova" {
		t.Fatalf("ended field must win on conflict, got %v", meta["agent"])
	}
	if meta["reason"] != "hangup" {
		t.Fatalf("new ended field missing, got %v", meta["reason"])
	}
}

func TestEndedLongDurationFlagged(t *testing.T) {
	f := newFixture(t)
	req := startedRequest("vapi-long")
	f.svc.ProcessEvent(context.Background(), f.orgID, req)

	if resp := f.svc.ProcessEvent(context.Background(), f.orgID, endedRequest(req.CallID, "vapi-long", 480)); !resp.OK {
		t.Fatalf("ended failed: %+v", resp)
	}

	payload := f.store.terminalParams[0].RawPayload
	if payload["duration_flag"] != true {
		t.Fatal("480s call must carry the duration flag")
	}
}

func TestEndedNoMeterEnqueuesPostProcess(t *testing.T) {
	f := newFixture(t)
	req := startedRequest("vapi-nometer")
	f.svc.ProcessEvent(context.Background(), f.orgID, req)

	end := endedRequest(req.CallID, "vapi-nometer", 30)
	if resp := f.svc.ProcessEvent(context.Background(), f.orgID, end); !resp.OK {
		t.Fatalf("ended failed: %+v", resp)
	}
	if f.enqueuer.calls != 1 {
		t.Fatalf("WEB_CALL_NO_METER must enqueue enrichment, got %d", f.enqueuer.calls)
	}

	metered := startedRequest("vapi-metered")
	f.svc.ProcessEvent(context.Background(), f.orgID, metered)
	cost := 0.5
	end2 := endedRequest(metered.CallID, "vapi-metered", 30)
	end2.CostUSD = &cost
	f.svc.ProcessEvent(context.Background(), f.orgID, end2)
	if f.enqueuer.calls != 1 {
		t.Fatal("metered call must not enqueue enrichment")
	}
}

func TestEndedEnqueueFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.enqueuer.err = errors.New("broker down")
	req := startedRequest("vapi-broker")
	f.svc.ProcessEvent(context.Background(), f.orgID, req)

	resp := f.svc.ProcessEvent(context.Background(), f.orgID, endedRequest(req.CallID, "vapi-broker", 30))
	if !resp.OK {
		t.Fatalf("enqueue failure must not fail the event: %+v", resp)
	}
}
