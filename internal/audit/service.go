package audit

import (
	"context"

	"voicedesk_backend/platform/logger"

	"github.com/google/uuid"
)

// Service records and lists audit entries. Recording is best-effort
// everywhere: a failed insert is logged and swallowed so an audit hiccup
// never fails the business operation it annotates.
type Service struct {
	repo *Repository
	log  *logger.Logger
}

// NewService creates a new audit service.
func NewService(repo *Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Record writes an audit entry attributed to a user action.
func (s *Service) Record(ctx context.Context, orgID uuid.UUID, actorUserID *uuid.UUID, action, entityType string, entityID uuid.UUID, metadata map[string]any) {
	if err := s.repo.Insert(ctx, orgID, actorUserID, action, entityType, entityID, metadata); err != nil {
		s.log.Error("audit insert failed", "action", action, "org_id", orgID.String(), "error", err)
	}
}

// RecordCallStartProbe writes the probe entry for a call-start attempt.
// Returns the insert error so the caller can log its fail-open decision;
// the entry itself is purely an audit artifact.
func (s *Service) RecordCallStartProbe(ctx context.Context, orgID, callID uuid.UUID) error {
	return s.repo.Insert(ctx, orgID, nil, ActionCallStartAttempt, "call", callID, nil)
}

// List returns the tenant's audit entries, newest first.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]Entry, error) {
	return s.repo.ListByOrg(ctx, orgID, limit, offset)
}
