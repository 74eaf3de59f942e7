// Package repository provides data access for tickets. All queries are
// scoped by org_id.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTicketNotFound is returned when no ticket matches the lookup.
var ErrTicketNotFound = errors.New("ticket not found")

// Ticket is a ticket row.
type Ticket struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	Subject     string
	Description string
	Status      string
	Priority    string
	CallID      *uuid.UUID
	AgentID     *uuid.UUID
	CallerName  string
	CallerPhone string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository provides data access for tickets.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new tickets repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ticketColumns = `id, org_id, subject, description, status, priority, call_id, agent_id,
		caller_name, caller_phone, created_at, updated_at`

// CreateParams carries the fields of a new ticket.
type CreateParams struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	Subject     string
	Description string
	Priority    string
	CallID      *uuid.UUID
	CallerName  string
	CallerPhone string
}

// Create inserts a ticket in the open state.
func (r *Repository) Create(ctx context.Context, p CreateParams) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tickets (id, org_id, subject, description, status, priority, call_id, caller_name, caller_phone)
		VALUES ($1, $2, $3, $4, 'open', $5, $6, $7, $8)
	`, p.ID, p.OrgID, p.Subject, p.Description, p.Priority, p.CallID, p.CallerName, p.CallerPhone)
	return err
}

// GetByID fetches a ticket scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, orgID, id uuid.UUID) (Ticket, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE org_id = $1 AND id = $2
	`, orgID, id)
	return scanTicket(row)
}

// List returns the tenant's tickets, newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID, status string, limit, offset int) ([]Ticket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE org_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, orgID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// UpdateStatus transitions a ticket to a new status.
func (r *Repository) UpdateStatus(ctx context.Context, orgID, id uuid.UUID, status string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets
		SET status = $3, updated_at = now()
		WHERE org_id = $1 AND id = $2
	`, orgID, id, status)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Assign sets the handling agent.
func (r *Repository) Assign(ctx context.Context, orgID, id, agentID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets
		SET agent_id = $3, updated_at = now()
		WHERE org_id = $1 AND id = $2
	`, orgID, id, agentID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ExistsForCall reports whether any ticket links to the given call.
func (r *Repository) ExistsForCall(ctx context.Context, orgID, callID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM tickets WHERE org_id = $1 AND call_id = $2)
	`, orgID, callID).Scan(&exists)
	return exists, err
}

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	err := row.Scan(
		&t.ID, &t.OrgID, &t.Subject, &t.Description, &t.Status, &t.Priority,
		&t.CallID, &t.AgentID, &t.CallerName, &t.CallerPhone, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ticket{}, ErrTicketNotFound
	}
	if err != nil {
		return Ticket{}, err
	}
	return t, nil
}
