// Package service contains appointment business logic.
package service

import (
	"context"
	"time"

	"voicedesk_backend/internal/appointments/repository"
	"voicedesk_backend/internal/appointments/transport"
	"voicedesk_backend/internal/audit"
	"voicedesk_backend/platform/apperr"

	"github.com/google/uuid"
)

const errEndTimeAfterStart = "endsAt must be after startsAt"

// Service provides business logic for appointments.
type Service struct {
	repo    *repository.Repository
	auditor *audit.Service
}

// New creates a new appointments service.
func New(repo *repository.Repository, auditor *audit.Service) *Service {
	return &Service{repo: repo, auditor: auditor}
}

// Book creates an appointment after checking the window is free.
func (s *Service) Book(ctx context.Context, orgID uuid.UUID, actorUserID *uuid.UUID, req transport.BookAppointmentRequest) (repository.Appointment, error) {
	if !req.EndsAt.After(req.StartsAt) {
		return repository.Appointment{}, apperr.New(apperr.KindValidation, errEndTimeAfterStart)
	}
	if req.StartsAt.Before(time.Now()) {
		return repository.Appointment{}, apperr.New(apperr.KindValidation, "cannot book in the past")
	}

	overlap, err := s.repo.HasOverlap(ctx, orgID, req.StartsAt, req.EndsAt)
	if err != nil {
		return repository.Appointment{}, apperr.Wrap(apperr.KindInternal, "failed to check availability", err)
	}
	if overlap {
		return repository.Appointment{}, apperr.New(apperr.KindConflict, "time slot is no longer available")
	}

	id := uuid.New()
	err = s.repo.Book(ctx, repository.BookParams{
		ID:            id,
		OrgID:         orgID,
		StartsAt:      req.StartsAt.UTC(),
		EndsAt:        req.EndsAt.UTC(),
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Notes:         req.Notes,
		CallID:        req.CallID,
		AgentID:       req.AgentID,
	})
	if err != nil {
		return repository.Appointment{}, apperr.Wrap(apperr.KindInternal, "failed to book appointment", err)
	}

	s.auditor.Record(ctx, orgID, actorUserID, audit.ActionAppointmentBook, "appointment", id, map[string]any{
		"starts_at": req.StartsAt.UTC().Format(time.RFC3339),
	})

	return s.repo.GetByID(ctx, orgID, id)
}

// Get fetches a single appointment.
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (repository.Appointment, error) {
	a, err := s.repo.GetByID(ctx, orgID, id)
	if err == repository.ErrAppointmentNotFound {
		return repository.Appointment{}, apperr.New(apperr.KindNotFound, "appointment not found")
	}
	if err != nil {
		return repository.Appointment{}, apperr.Wrap(apperr.KindInternal, "failed to load appointment", err)
	}
	return a, nil
}

// List returns the tenant's appointments within an optional time window.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, from, to *time.Time, limit, offset int) ([]repository.Appointment, error) {
	return s.repo.List(ctx, orgID, from, to, limit, offset)
}

// Cancel marks an appointment cancelled. Cancelling an already cancelled or
// completed appointment is a conflict.
func (s *Service) Cancel(ctx context.Context, orgID, id uuid.UUID) (repository.Appointment, error) {
	current, err := s.Get(ctx, orgID, id)
	if err != nil {
		return repository.Appointment{}, err
	}
	if current.Status == string(transport.StatusCancelled) || current.Status == string(transport.StatusCompleted) {
		return repository.Appointment{}, apperr.New(apperr.KindConflict, "appointment is no longer active")
	}

	rows, err := s.repo.UpdateStatus(ctx, orgID, id, string(transport.StatusCancelled))
	if err != nil {
		return repository.Appointment{}, apperr.Wrap(apperr.KindInternal, "failed to cancel appointment", err)
	}
	if rows == 0 {
		return repository.Appointment{}, apperr.New(apperr.KindNotFound, "appointment not found")
	}
	return s.repo.GetByID(ctx, orgID, id)
}

// ExistsForCall reports whether any appointment links to the given call.
// Used by the call reconciler as an artifact check.
func (s *Service) ExistsForCall(ctx context.Context, orgID, callID uuid.UUID) (bool, error) {
	return s.repo.ExistsForCall(ctx, orgID, callID)
}
