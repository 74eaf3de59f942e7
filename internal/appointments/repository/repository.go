// Package repository provides data access for appointments. All queries are
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

// ErrAppointmentNotFound is returned when no appointment matches the lookup.
var ErrAppointmentNotFound = errors.New("appointment not found")

// Appointment is an appointment row.
type Appointment struct {
	ID            uuid.UUID
	OrgID         uuid.UUID
	Status        string
	StartsAt      time.Time
	EndsAt        time.Time
	CustomerName  string
	CustomerPhone string
	Notes         string
	CallID        *uuid.UUID
	AgentID       *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Repository provides data access for appointments.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new appointments repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const appointmentColumns = `id, org_id, status, starts_at, ends_at, customer_name, customer_phone,
		notes, call_id, agent_id, created_at, updated_at`

// BookParams carries the fields of a new appointment.
type BookParams struct {
	ID            uuid.UUID
	OrgID         uuid.UUID
	StartsAt      time.Time
	EndsAt        time.Time
	CustomerName  string
	CustomerPhone string
	Notes         string
	CallID        *uuid.UUID
	AgentID       *uuid.UUID
}

// Book inserts an appointment in the booked state.
func (r *Repository) Book(ctx context.Context, p BookParams) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (id, org_id, status, starts_at, ends_at, customer_name, customer_phone, notes, call_id, agent_id)
		VALUES ($1, $2, 'booked', $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.OrgID, p.StartsAt, p.EndsAt, p.CustomerName, p.CustomerPhone, p.Notes, p.CallID, p.AgentID)
	return err
}

// GetByID fetches an appointment scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, orgID, id uuid.UUID) (Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE org_id = $1 AND id = $2
	`, orgID, id)
	return scanAppointment(row)
}

// List returns the tenant's appointments ordered by start time.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID, from, to *time.Time, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE org_id = $1
		  AND ($2::timestamptz IS NULL OR starts_at >= $2)
		  AND ($3::timestamptz IS NULL OR starts_at < $3)
		ORDER BY starts_at ASC
		LIMIT $4 OFFSET $5
	`, orgID, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	return appointments, rows.Err()
}

// UpdateStatus transitions an appointment to a new status.
func (r *Repository) UpdateStatus(ctx context.Context, orgID, id uuid.UUID, status string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE org_id = $1 AND id = $2
	`, orgID, id, status)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// HasOverlap reports whether an active appointment overlaps the given window.
func (r *Repository) HasOverlap(ctx context.Context, orgID uuid.UUID, startsAt, endsAt time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE org_id = $1
			  AND status IN ('booked', 'confirmed')
			  AND starts_at < $3 AND ends_at > $2
		)
	`, orgID, startsAt, endsAt).Scan(&exists)
	return exists, err
}

// ExistsForCall reports whether any appointment links to the given call.
func (r *Repository) ExistsForCall(ctx context.Context, orgID, callID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointments WHERE org_id = $1 AND call_id = $2)
	`, orgID, callID).Scan(&exists)
	return exists, err
}

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.OrgID, &a.Status, &a.StartsAt, &a.EndsAt, &a.CustomerName,
		&a.CustomerPhone, &a.Notes, &a.CallID, &a.AgentID, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, ErrAppointmentNotFound
	}
	if err != nil {
		return Appointment{}, err
	}
	return a, nil
}
