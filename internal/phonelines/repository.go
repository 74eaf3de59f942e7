package phonelines

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrLineNotFound is returned when no phone line matches the lookup.
var ErrLineNotFound = errors.New("phone line not found")

// Line is a phone line row.
type Line struct {
	ID          uuid.UUID `json:"id"`
	OrgID       uuid.UUID `json:"-"`
	PhoneNumber string    `json:"phoneNumber"`
	Label       string    `json:"label,omitempty"`
	AgentName   string    `json:"agentName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Repository provides data access for phone lines.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new phone lines repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a phone line. The phone_number column has a per-tenant
// unique constraint.
func (r *Repository) Create(ctx context.Context, orgID, id uuid.UUID, phoneNumber, label, agentName string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO phone_lines (id, org_id, phone_number, label, agent_name)
		VALUES ($1, $2, $3, $4, $5)
	`, id, orgID, phoneNumber, label, agentName)
	return err
}

// GetByID fetches a phone line scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, orgID, id uuid.UUID) (Line, error) {
	var l Line
	err := r.pool.QueryRow(ctx, `
		SELECT id, org_id, phone_number, label, agent_name, created_at
		FROM phone_lines
		WHERE org_id = $1 AND id = $2
	`, orgID, id).Scan(&l.ID, &l.OrgID, &l.PhoneNumber, &l.Label, &l.AgentName, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Line{}, ErrLineNotFound
	}
	if err != nil {
		return Line{}, err
	}
	return l, nil
}

// List returns the tenant's phone lines, newest first.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, phone_number, label, agent_name, created_at
		FROM phone_lines
		WHERE org_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrgID, &l.PhoneNumber, &l.Label, &l.AgentName, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Delete removes a phone line.
func (r *Repository) Delete(ctx context.Context, orgID, id uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM phone_lines
		WHERE org_id = $1 AND id = $2
	`, orgID, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// isUniqueViolation reports whether the error is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
