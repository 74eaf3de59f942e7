// Package service contains ticket business logic.
package service

import (
	"context"

	"voicedesk_backend/internal/audit"
	"voicedesk_backend/internal/events"
	"voicedesk_backend/internal/tickets/repository"
	"voicedesk_backend/internal/tickets/transport"
	"voicedesk_backend/platform/apperr"

	"github.com/google/uuid"
)

// validTransitions encodes the allowed ticket status moves.
var validTransitions = map[string][]string{
	string(transport.StatusOpen):       {string(transport.StatusInProgress), string(transport.StatusResolved), string(transport.StatusClosed)},
	string(transport.StatusInProgress): {string(transport.StatusOpen), string(transport.StatusResolved), string(transport.StatusClosed)},
	string(transport.StatusResolved):   {string(transport.StatusClosed), string(transport.StatusOpen)},
	string(transport.StatusClosed):     {},
}

// Service provides business logic for tickets.
type Service struct {
	repo     *repository.Repository
	auditor  *audit.Service
	eventBus events.Bus
}

// New creates a new tickets service.
func New(repo *repository.Repository, auditor *audit.Service, eventBus events.Bus) *Service {
	return &Service{repo: repo, auditor: auditor, eventBus: eventBus}
}

// Create opens a new ticket, optionally linked to a call.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, actorUserID *uuid.UUID, req transport.CreateTicketRequest) (repository.Ticket, error) {
	priority := req.Priority
	if priority == "" {
		priority = "normal"
	}

	id := uuid.New()
	err := s.repo.Create(ctx, repository.CreateParams{
		ID:          id,
		OrgID:       orgID,
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    priority,
		CallID:      req.CallID,
		CallerName:  req.CallerName,
		CallerPhone: req.CallerPhone,
	})
	if err != nil {
		return repository.Ticket{}, apperr.Wrap(apperr.KindInternal, "failed to create ticket", err)
	}

	s.auditor.Record(ctx, orgID, actorUserID, audit.ActionTicketCreate, "ticket", id, map[string]any{
		"subject": req.Subject,
	})
	s.eventBus.Publish(ctx, events.TicketCreated{
		BaseEvent: events.NewBaseEvent(),
		TicketID:  id,
		TenantID:  orgID,
		CallID:    req.CallID,
		Subject:   req.Subject,
	})

	return s.repo.GetByID(ctx, orgID, id)
}

// Get fetches a single ticket.
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (repository.Ticket, error) {
	t, err := s.repo.GetByID(ctx, orgID, id)
	if err == repository.ErrTicketNotFound {
		return repository.Ticket{}, apperr.New(apperr.KindNotFound, "ticket not found")
	}
	if err != nil {
		return repository.Ticket{}, apperr.Wrap(apperr.KindInternal, "failed to load ticket", err)
	}
	return t, nil
}

// List returns the tenant's tickets.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, status string, limit, offset int) ([]repository.Ticket, error) {
	return s.repo.List(ctx, orgID, status, limit, offset)
}

// UpdateStatus transitions a ticket to a new status, enforcing the allowed
// transition table.
func (s *Service) UpdateStatus(ctx context.Context, orgID, id uuid.UUID, actorUserID *uuid.UUID, status transport.TicketStatus) (repository.Ticket, error) {
	current, err := s.Get(ctx, orgID, id)
	if err != nil {
		return repository.Ticket{}, err
	}

	if !transitionAllowed(current.Status, string(status)) {
		return repository.Ticket{}, apperr.New(apperr.KindConflict, "invalid status transition").
			WithDetails(map[string]string{"from": current.Status, "to": string(status)})
	}

	rows, err := s.repo.UpdateStatus(ctx, orgID, id, string(status))
	if err != nil {
		return repository.Ticket{}, apperr.Wrap(apperr.KindInternal, "failed to update ticket", err)
	}
	if rows == 0 {
		return repository.Ticket{}, apperr.New(apperr.KindNotFound, "ticket not found")
	}

	s.auditor.Record(ctx, orgID, actorUserID, audit.ActionTicketStatus, "ticket", id, map[string]any{
		"from": current.Status,
		"to":   string(status),
	})

	return s.repo.GetByID(ctx, orgID, id)
}

// Assign sets the handling agent on a ticket.
func (s *Service) Assign(ctx context.Context, orgID, id, agentID uuid.UUID) (repository.Ticket, error) {
	rows, err := s.repo.Assign(ctx, orgID, id, agentID)
	if err != nil {
		return repository.Ticket{}, apperr.Wrap(apperr.KindInternal, "failed to assign ticket", err)
	}
	if rows == 0 {
		return repository.Ticket{}, apperr.New(apperr.KindNotFound, "ticket not found")
	}
	return s.repo.GetByID(ctx, orgID, id)
}

// ExistsForCall reports whether any ticket links to the given call. Used by
// the call reconciler as an artifact check.
func (s *Service) ExistsForCall(ctx context.Context, orgID, callID uuid.UUID) (bool, error) {
	return s.repo.ExistsForCall(ctx, orgID, callID)
}

func transitionAllowed(from, to string) bool {
	if from == to {
		return true
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
