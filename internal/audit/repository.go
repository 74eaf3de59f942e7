// Package audit provides the tenant-scoped audit trail. Entries are
// insert-only; the trail is never used as a counting substrate (the call
// start limiter has its own counter store).
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Well-known action tags.
const (
	ActionCallStartAttempt = "call.start_attempt"
	ActionTicketCreate     = "ticket.create"
	ActionTicketStatus     = "ticket.status_change"
	ActionAgentCreate      = "agent.create"
	ActionAgentUpdate      = "agent.update"
	ActionAgentDelete      = "agent.delete"
	ActionPhoneLineCreate  = "phone_line.create"
	ActionPhoneLineDelete  = "phone_line.delete"
	ActionAppointmentBook  = "appointment.book"
)

// Entry is a single audit log row.
type Entry struct {
	ID          uuid.UUID      `json:"id"`
	OrgID       uuid.UUID      `json:"orgId"`
	ActorUserID *uuid.UUID     `json:"actorUserId,omitempty"`
	Action      string         `json:"action"`
	EntityType  string         `json:"entityType"`
	EntityID    uuid.UUID      `json:"entityId"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Repository provides data access for audit entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes one audit entry.
func (r *Repository) Insert(ctx context.Context, orgID uuid.UUID, actorUserID *uuid.UUID, action, entityType string, entityID uuid.UUID, metadata map[string]any) error {
	var metadataJSON []byte
	if metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(metadata)
		if err != nil {
			return err
		}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (org_id, actor_user_id, action, entity_type, entity_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, orgID, actorUserID, action, entityType, entityID, metadataJSON)
	return err
}

// ListByOrg returns the tenant's audit entries, newest first.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, actor_user_id, action, entity_type, entity_id, metadata, created_at
		FROM audit_log
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var metadata []byte
		if err := rows.Scan(
			&entry.ID, &entry.OrgID, &entry.ActorUserID, &entry.Action,
			&entry.EntityType, &entry.EntityID, &metadata, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &entry.Metadata)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
