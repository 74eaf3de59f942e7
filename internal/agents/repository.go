// Package agents manages the human agent roster of a tenant. Agents receive
// tickets and appointments; the module is a thin CRUD surface.
package agents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAgentNotFound is returned when no agent matches the lookup.
var ErrAgentNotFound = errors.New("agent not found")

// Agent is an agent row.
type Agent struct {
	ID        uuid.UUID  `json:"id"`
	OrgID     uuid.UUID  `json:"-"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"-"`
}

// Repository provides data access for agents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new agents repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const agentColumns = `id, org_id, name, email, active, created_at, updated_at, deleted_at`

// Create inserts a new active agent.
func (r *Repository) Create(ctx context.Context, orgID uuid.UUID, id uuid.UUID, name, email string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO agents (id, org_id, name, email, active)
		VALUES ($1, $2, $3, $4, true)
	`, id, orgID, name, email)
	return err
}

// GetByID fetches a non-deleted agent scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, orgID, id uuid.UUID) (Agent, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+agentColumns+`
		FROM agents
		WHERE org_id = $1 AND id = $2 AND deleted_at IS NULL
	`, orgID, id)
	return scanAgent(row)
}

// List returns the tenant's non-deleted agents alphabetically.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID) ([]Agent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+agentColumns+`
		FROM agents
		WHERE org_id = $1 AND deleted_at IS NULL
		ORDER BY name ASC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// Update changes an agent's name, email, and active flag.
func (r *Repository) Update(ctx context.Context, orgID, id uuid.UUID, name, email string, active bool) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE agents
		SET name = $3, email = $4, active = $5, updated_at = now()
		WHERE org_id = $1 AND id = $2 AND deleted_at IS NULL
	`, orgID, id, name, email, active)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SoftDelete marks an agent deleted without removing the row; historical
// tickets keep their assignment.
func (r *Repository) SoftDelete(ctx context.Context, orgID, id uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE agents
		SET deleted_at = now(), active = false, updated_at = now()
		WHERE org_id = $1 AND id = $2 AND deleted_at IS NULL
	`, orgID, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanAgent(row pgx.Row) (Agent, error) {
	var a Agent
	err := row.Scan(&a.ID, &a.OrgID, &a.Name, &a.Email, &a.Active, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrAgentNotFound
	}
	if err != nil {
		return Agent{}, err
	}
	return a, nil
}
