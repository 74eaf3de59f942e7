// Package repository provides data access for call rows.
// All reads and writes are scoped by org_id; the upsert conflict target is
// the (org_id, vapi_call_id) unique index, which is what makes duplicate
// webhook deliveries converge onto a single row.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCallNotFound is returned when no call row matches the lookup.
var ErrCallNotFound = errors.New("call not found")

// Call is a call row as stored in the calls table.
type Call struct {
	ID              uuid.UUID
	VapiCallID      string
	OrgID           uuid.UUID
	CallType        string
	Direction       string
	StartedAt       *time.Time
	EndedAt         *time.Time
	DurationSeconds *int
	CostUSD         *float64
	Outcome         *string
	CompletionState *string
	RawPayload      map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository provides data access for calls.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new calls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const callColumns = `id, vapi_call_id, org_id, call_type, direction, started_at, ended_at,
		duration_seconds, cost_usd, outcome, completion_state, raw_payload, created_at, updated_at`

// StartedParams carries the fields written on a "started" event.
type StartedParams struct {
	ID         uuid.UUID
	VapiCallID string
	OrgID      uuid.UUID
	CallType   string
	Direction  string
	StartedAt  time.Time
	CostUSD    float64
	RawPayload map[string]any
}

// UpsertStarted creates or updates a call row for a "started" event. A
// duplicate delivery converges onto the existing row instead of creating a
// second one.
func (r *Repository) UpsertStarted(ctx context.Context, p StartedParams) error {
	payload, err := json.Marshal(p.RawPayload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO calls (id, vapi_call_id, org_id, call_type, direction, started_at, cost_usd, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (org_id, vapi_call_id) DO UPDATE
		SET call_type = EXCLUDED.call_type,
		    direction = EXCLUDED.direction,
		    started_at = EXCLUDED.started_at,
		    cost_usd = EXCLUDED.cost_usd,
		    raw_payload = EXCLUDED.raw_payload,
		    updated_at = now()
	`, p.ID, p.VapiCallID, p.OrgID, p.CallType, p.Direction, p.StartedAt, p.CostUSD, payload)
	return err
}

// UpsertStub inserts a minimal row for an "ended" event that arrived before
// its "started" counterpart. A concurrent insert for the same provider id is
// harmless: the conflict clause makes this a no-op.
func (r *Repository) UpsertStub(ctx context.Context, orgID, callID uuid.UUID, vapiCallID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO calls (id, vapi_call_id, org_id, call_type, direction)
		VALUES ($1, $2, $3, 'voice', 'inbound')
		ON CONFLICT (org_id, vapi_call_id) DO NOTHING
	`, callID, vapiCallID, orgID)
	return err
}

// GetByProviderID fetches a call by its tenant and provider call identifier.
func (r *Repository) GetByProviderID(ctx context.Context, orgID uuid.UUID, vapiCallID string) (Call, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+callColumns+`
		FROM calls
		WHERE org_id = $1 AND vapi_call_id = $2
	`, orgID, vapiCallID)
	return scanCall(row)
}

// GetByID fetches a call by its tenant and internal identifier.
func (r *Repository) GetByID(ctx context.Context, orgID, id uuid.UUID) (Call, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+callColumns+`
		FROM calls
		WHERE org_id = $1 AND id = $2
	`, orgID, id)
	return scanCall(row)
}

// UpdateEnded writes the end timestamp, duration, and cost on an "ended"
// event. Duration is left untouched when the event did not supply one.
func (r *Repository) UpdateEnded(ctx context.Context, orgID uuid.UUID, vapiCallID string, endedAt time.Time, durationSeconds *int, costUSD float64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE calls
		SET ended_at = $3,
		    duration_seconds = COALESCE($4, duration_seconds),
		    cost_usd = $5,
		    updated_at = now()
		WHERE org_id = $1 AND vapi_call_id = $2
	`, orgID, vapiCallID, endedAt, durationSeconds, costUSD)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// TerminalParams carries the terminal state of an ended call.
type TerminalParams struct {
	ID              uuid.UUID
	VapiCallID      string
	OrgID           uuid.UUID
	EndedAt         time.Time
	DurationSeconds *int
	CostUSD         float64
	CompletionState string
	RawPayload      map[string]any
}

// UpdateTerminal merges the derived completion state, final cost, and merged
// payload into the row. Matched by (org_id, vapi_call_id) for determinism.
func (r *Repository) UpdateTerminal(ctx context.Context, p TerminalParams) (int64, error) {
	payload, err := json.Marshal(p.RawPayload)
	if err != nil {
		return 0, err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE calls
		SET completion_state = $3,
		    cost_usd = $4,
		    raw_payload = $5,
		    updated_at = now()
		WHERE org_id = $1 AND vapi_call_id = $2
	`, p.OrgID, p.VapiCallID, p.CompletionState, p.CostUSD, payload)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpsertTerminal is the defensive fallback when the terminal update affected
// zero rows (the target row was concurrently removed or recreated). The same
// conflict target guarantees the terminal state lands exactly once.
func (r *Repository) UpsertTerminal(ctx context.Context, p TerminalParams) error {
	payload, err := json.Marshal(p.RawPayload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO calls (id, vapi_call_id, org_id, call_type, direction, ended_at, duration_seconds, cost_usd, completion_state, raw_payload)
		VALUES ($1, $2, $3, 'voice', 'inbound', $4, $5, $6, $7, $8)
		ON CONFLICT (org_id, vapi_call_id) DO UPDATE
		SET ended_at = EXCLUDED.ended_at,
		    duration_seconds = COALESCE(EXCLUDED.duration_seconds, calls.duration_seconds),
		    cost_usd = EXCLUDED.cost_usd,
		    completion_state = EXCLUDED.completion_state,
		    raw_payload = EXCLUDED.raw_payload,
		    updated_at = now()
	`, p.ID, p.VapiCallID, p.OrgID, p.EndedAt, p.DurationSeconds, p.CostUSD, p.CompletionState, payload)
	return err
}

// UpdateEnrichment upgrades cost and outcome from post-call enrichment.
// Only rows whose cost never got metered are touched.
func (r *Repository) UpdateEnrichment(ctx context.Context, orgID, id uuid.UUID, costUSD float64, outcome string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE calls
		SET cost_usd = $3,
		    outcome = $4,
		    raw_payload = jsonb_set(COALESCE(raw_payload, '{}'::jsonb), '{cost_source}', '"PAYLOAD"'),
		    updated_at = now()
		WHERE org_id = $1 AND id = $2 AND raw_payload->>'cost_source' = 'WEB_CALL_NO_METER'
	`, orgID, id, costUSD, outcome)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// List returns the tenant's calls, newest first.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]Call, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+callColumns+`
		FROM calls
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

func scanCall(row pgx.Row) (Call, error) {
	var call Call
	var payload []byte
	err := row.Scan(
		&call.ID, &call.VapiCallID, &call.OrgID, &call.CallType, &call.Direction,
		&call.StartedAt, &call.EndedAt, &call.DurationSeconds, &call.CostUSD,
		&call.Outcome, &call.CompletionState, &payload, &call.CreatedAt, &call.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Call{}, ErrCallNotFound
	}
	if err != nil {
		return Call{}, err
	}
	if len(payload) > 0 {
		_ = json.Unmarshal(payload, &call.RawPayload)
	}
	return call, nil
}
