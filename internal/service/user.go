package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/voltplan/voltplan/internal/domain"
	"github.com/voltplan/voltplan/internal/store"
	"github.com/voltplan/voltplan/pkg/cryptox"
	"github.com/voltplan/voltplan/pkg/passwordx"
)

// UserService is the admin-facing user management surface. Role changes and
// deletions enforce the last-admin invariant: the system never ends up with
// zero admins.
type UserService struct {
	store store.Store
	audit *AuditService
	log   *slog.Logger
}

func NewUserService(st store.Store, audit *AuditService, log *slog.Logger) *UserService {
	return &UserService{store: st, audit: audit, log: log}
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.store.Users().List(ctx)
}

func (s *UserService) Get(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

// UpdateRole changes a user's role. Demoting the only remaining admin is
// refused.
func (s *UserService) UpdateRole(ctx context.Context, actorID, userID, role string, meta RequestMeta) error {
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup user: %w", err)
		}

		if user.IsAdmin() && role != domain.RoleAdmin {
			others, err := tx.Users().CountAdmins(ctx, userID)
			if err != nil {
				return fmt.Errorf("count admins: %w", err)
			}
			if others == 0 {
				return ErrLastAdminProtected
			}
		}

		return tx.Users().UpdateRole(ctx, userID, role)
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, domain.AuditEntry{
		UserID:    actorID,
		Action:    domain.AuditUserUpdate,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
		Details:   map[string]any{"target": userID, "role": role},
	})
	return nil
}

// Delete removes a user and, via schema cascade, all their sessions.
// Deleting the only remaining admin is refused.
func (s *UserService) Delete(ctx context.Context, actorID, userID string, meta RequestMeta) error {
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup user: %w", err)
		}

		if user.IsAdmin() {
			others, err := tx.Users().CountAdmins(ctx, userID)
			if err != nil {
				return fmt.Errorf("count admins: %w", err)
			}
			if others == 0 {
				return ErrLastAdminProtected
			}
		}

		return tx.Users().Delete(ctx, userID)
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, domain.AuditEntry{
		UserID:    actorID,
		Action:    domain.AuditUserDelete,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
		Details:   map[string]any{"target": userID},
	})
	return nil
}

// SetPassword replaces a user's password without knowing the current one.
// Admin-only; every session of the target user is revoked.
func (s *UserService) SetPassword(ctx context.Context, actorID, userID, newPassword string, meta RequestMeta) error {
	if err := passwordx.Validate(newPassword); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("update password hash: %w", err)
		}
		if err := tx.RefreshTokens().DeleteAllForUser(ctx, userID); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, domain.AuditEntry{
		UserID:    actorID,
		Action:    domain.AuditAdminSetPassword,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
		Details:   map[string]any{"target": userID},
	})
	return nil
}
