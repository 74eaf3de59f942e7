package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voicedesk_backend/internal/calls/repository"
	"voicedesk_backend/internal/calls/service"
	"voicedesk_backend/internal/calls/transport"
	"voicedesk_backend/internal/events"
	"voicedesk_backend/internal/ratelimit"
	"voicedesk_backend/platform/httpkit"
	"voicedesk_backend/platform/logger"
	"voicedesk_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type memStore struct {
	calls map[string]repository.Call
}

func (m *memStore) key(orgID uuid.UUID, vapiCallID string) string {
	return orgID.String() + "/" + vapiCallID
}

func (m *memStore) UpsertStarted(_ context.Context, p repository.StartedParams) error {
	started := p.StartedAt
	m.calls[m.key(p.OrgID, p.VapiCallID)] = repository.Call{
		ID: p.ID, VapiCallID: p.VapiCallID, OrgID: p.OrgID,
		CallType: p.CallType, Direction: p.Direction,
		StartedAt: &started, RawPayload: p.RawPayload,
	}
	return nil
}

func (m *memStore) UpsertStub(_ context.Context, orgID, callID uuid.UUID, vapiCallID string) error {
	k := m.key(orgID, vapiCallID)
	if _, ok := m.calls[k]; !ok {
		m.calls[k] = repository.Call{ID: callID, VapiCallID: vapiCallID, OrgID: orgID}
	}
	return nil
}

func (m *memStore) GetByProviderID(_ context.Context, orgID uuid.UUID, vapiCallID string) (repository.Call, error) {
	call, ok := m.calls[m.key(orgID, vapiCallID)]
	if !ok {
		return repository.Call{}, repository.ErrCallNotFound
	}
	return call, nil
}

func (m *memStore) GetByID(_ context.Context, orgID, id uuid.UUID) (repository.Call, error) {
	for _, c := range m.calls {
		if c.OrgID == orgID && c.ID == id {
			return c, nil
		}
	}
	return repository.Call{}, repository.ErrCallNotFound
}

func (m *memStore) UpdateEnded(_ context.Context, orgID uuid.UUID, vapiCallID string, endedAt time.Time, durationSeconds *int, costUSD float64) (int64, error) {
	return 1, nil
}

func (m *memStore) UpdateTerminal(_ context.Context, p repository.TerminalParams) (int64, error) {
	k := m.key(p.OrgID, p.VapiCallID)
	call, ok := m.calls[k]
	if !ok {
		return 0, nil
	}
	state := p.CompletionState
	call.CompletionState = &state
	call.RawPayload = p.RawPayload
	m.calls[k] = call
	return 1, nil
}

func (m *memStore) UpsertTerminal(_ context.Context, p repository.TerminalParams) error {
	return nil
}

func (m *memStore) List(_ context.Context, orgID uuid.UUID, limit, offset int) ([]repository.Call, error) {
	var out []repository.Call
	for _, c := range m.calls {
		if c.OrgID == orgID {
			out = append(out, c)
		}
	}
	return out, nil
}

type allowAll struct{}

func (allowAll) Allow(_ context.Context, _, _ uuid.UUID) ratelimit.Decision {
	return ratelimit.Decision{Allowed: true, Count: 1, Limit: 10}
}

type noArtifacts struct{}

func (noArtifacts) ExistsForCall(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return false, nil
}

type noopAuditor struct{}

func (noopAuditor) RecordCallStartProbe(_ context.Context, _, _ uuid.UUID) error { return nil }

func setupRouter(t *testing.T, tenantID *uuid.UUID) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.New("development")
	svc := service.NewService(
		&memStore{calls: make(map[string]repository.Call)},
		allowAll{}, noArtifacts{}, noArtifacts{}, noopAuditor{}, nil,
		events.NewInMemoryBus(log), log, "webcall:")
	h := NewHandler(svc, validator.New(), log)

	r := gin.New()
	r.POST("/api/v1/calls/events", func(c *gin.Context) {
		if tenantID != nil {
			c.Set(httpkit.ContextUserIDKey, uuid.New())
			c.Set(httpkit.ContextTenantIDKey, *tenantID)
		}
		c.Next()
	}, h.HandleCallEvent)
	return r
}

func postEvent(t *testing.T, r *gin.Engine, body any) (*httptest.ResponseRecorder, transport.EventResponse) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/calls/events", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp transport.EventResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return w, resp
}

func TestEventEndpointAlwaysAnswers200(t *testing.T) {
	tenant := uuid.New()

	tests := []struct {
		name     string
		tenant   *uuid.UUID
		body     any
		wantOK   bool
		wantCode string
	}{
		{
			name:     "no session",
			tenant:   nil,
			body:     transport.CallEventRequest{CallID: uuid.NewString(), VapiCallID: "v1", Event: "started", TS: time.Now().UnixMilli()},
			wantCode: transport.CodeUnauthorized,
		},
		{
			name:     "malformed json",
			tenant:   &tenant,
			body:     `{"call_id": `,
			wantCode: transport.CodeInvalidJSON,
		},
		{
			name:     "missing fields",
			tenant:   &tenant,
			body:     transport.CallEventRequest{Event: "started"},
			wantCode: transport.CodeValidationFailed,
		},
		{
			name:     "unknown event kind",
			tenant:   &tenant,
			body:     transport.CallEventRequest{CallID: uuid.NewString(), VapiCallID: "v1", Event: "ringing", TS: time.Now().UnixMilli()},
			wantCode: transport.CodeValidationFailed,
		},
		{
			name:     "legacy placeholder call id",
			tenant:   &tenant,
			body:     transport.CallEventRequest{CallID: uuid.NewString(), VapiCallID: "webcall:" + uuid.NewString(), Event: "started", TS: time.Now().UnixMilli()},
			wantCode: transport.CodeMissingVapiCallID,
		},
		{
			name:   "valid started",
			tenant: &tenant,
			body:   transport.CallEventRequest{CallID: uuid.NewString(), VapiCallID: "vapi-ok", Event: "started", TS: time.Now().UnixMilli()},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupRouter(t, tt.tenant)
			w, resp := postEvent(t, r, tt.body)

			if w.Code != http.StatusOK {
				t.Fatalf("status must always be 200, got %d", w.Code)
			}
			if resp.OK != tt.wantOK {
				t.Fatalf("ok: got %v, want %v (%+v)", resp.OK, tt.wantOK, resp)
			}
			if !tt.wantOK && (resp.Error == nil || resp.Error.Code != tt.wantCode) {
				t.Fatalf("expected code %s, got %+v", tt.wantCode, resp.Error)
			}
		})
	}
}

func TestEventEndpointEndedReturnsCompletionState(t *testing.T) {
	tenant := uuid.New()
	r := setupRouter(t, &tenant)

	callID := uuid.NewString()
	if _, resp := postEvent(t, r, transport.CallEventRequest{
		CallID: callID, VapiCallID: "vapi-e2e", Event: "started", TS: time.Now().UnixMilli(),
	}); !resp.OK {
		t.Fatalf("started failed: %+v", resp)
	}

	duration := 30
	_, resp := postEvent(t, r, transport.CallEventRequest{
		CallID: callID, VapiCallID: "vapi-e2e", Event: "ended",
		TS: time.Now().UnixMilli(), DurationSeconds: &duration,
	})
	if !resp.OK {
		t.Fatalf("ended failed: %+v", resp)
	}
	if resp.CompletionState != "abandoned" {
		t.Fatalf("expected abandoned for a call with no linked artifact, got %s", resp.CompletionState)
	}
}
