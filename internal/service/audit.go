package service

import (
	"context"
	"log/slog"

	"github.com/voltplan/voltplan/internal/domain"
	"github.com/voltplan/voltplan/internal/store"
	"github.com/voltplan/voltplan/pkg/idx"
)

// RequestMeta carries the request attributes recorded with every audit entry.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// AuditService writes the append-only audit trail. Recording is best effort:
// a failed insert is logged but never fails the operation being audited.
type AuditService struct {
	store store.Store
	log   *slog.Logger
}

func NewAuditService(st store.Store, log *slog.Logger) *AuditService {
	return &AuditService{store: st, log: log}
}

// Record appends one entry. The write is detached from the request's
// cancellation so an aborted request still leaves its trace.
func (s *AuditService) Record(ctx context.Context, e domain.AuditEntry) {
	if e.ID == "" {
		e.ID = idx.New().String()
	}

	if err := s.store.AuditLogs().Insert(context.WithoutCancel(ctx), e); err != nil {
		s.log.Error("audit insert failed",
			"action", e.Action,
			"user_id", e.UserID,
			"error", err,
		)
	}
}

// ListRecent returns the newest entries up to limit, capped at 1000.
func (s *AuditService) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	return s.store.AuditLogs().ListRecent(ctx, limit)
}
