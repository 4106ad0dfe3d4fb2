package service

import (
	"context"

	"entrypass/internal/entry/models"
	id "entrypass/pkg/domain"
	"entrypass/pkg/platform/audit"
)

func (s *Service) emitInfoStatus(ctx context.Context, info *models.EntryInfo, from models.EntryInfoStatus, reason string) {
	s.emit(ctx, audit.EventEntryInfoStatusChanged, info.UserID, info.ID.String(), reason, map[string]string{
		"from": string(from),
		"to":   string(info.Status),
	})
}

func (s *Service) emitPackStatus(ctx context.Context, info *models.EntryInfo, pack *models.EntryPack, from models.EntryPackStatus, reason string) {
	s.emit(ctx, audit.EventEntryPackStatusChanged, info.UserID, pack.ID.String(), reason, map[string]string{
		"entry_info_id": info.ID.String(),
		"from":          string(from),
		"to":            string(pack.Status),
	})
}

// emit logs the event and forwards it to the audit publisher. Publishing is
// best effort; a failure is logged and never fails the state change.
func (s *Service) emit(ctx context.Context, event audit.AuditEvent, userID id.UserID, subject, reason string, details map[string]string) {
	s.logInfo(ctx, string(event),
		"subject", subject,
		"reason", reason,
		"log_type", "audit",
	)
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Category: event.Category(),
		UserID:   userID,
		Subject:  subject,
		Action:   string(event),
		Reason:   reason,
		Details:  details,
	})
	if err != nil {
		s.logWarn(ctx, "failed to publish audit event", "event", string(event), "error", err)
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}
