package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voltplan/voltplan/internal/domain"
	"github.com/voltplan/voltplan/internal/store"
	"github.com/voltplan/voltplan/pkg/cryptox"
	"github.com/voltplan/voltplan/pkg/idx"
	"github.com/voltplan/voltplan/pkg/mailx"
	"github.com/voltplan/voltplan/pkg/passwordx"
)

// AccountService owns the access-code flows: admin invites, registration by
// code, and password reset by code.
type AccountService struct {
	store  store.Store
	mailer mailx.Mailer
	audit  *AuditService
	log    *slog.Logger
}

func NewAccountService(st store.Store, mailer mailx.Mailer, audit *AuditService, log *slog.Logger) *AccountService {
	return &AccountService{store: st, mailer: mailer, audit: audit, log: log}
}

// Invite mints a single-use registration code for the given email and mails
// it to the invitee. The email address must not already belong to an
// account. The code travels only by email; completing registration against
// it is what proves mailbox ownership.
func (s *AccountService) Invite(ctx context.Context, email string, meta RequestMeta) (string, error) {
	_, err := s.store.Users().GetByEmail(ctx, email)
	if err == nil {
		return "", ErrEmailAlreadyExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("lookup user: %w", err)
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	err = s.store.AccessCodes().Create(ctx, domain.AccessCode{
		ID:        idx.New().String(),
		Code:      code,
		Purpose:   domain.PurposeRegistration,
		ExpiresAt: time.Now().UTC().Add(domain.RegistrationCodeTTL),
	})
	if err != nil {
		return "", fmt.Errorf("persist code: %w", err)
	}

	s.sendMail(ctx, email, "You have been invited",
		fmt.Sprintf("Use this registration code within 24 hours: %s", code))

	s.audit.Record(ctx, domain.AuditEntry{
		Action:    domain.AuditInvite,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
		Details:   map[string]any{"email": email},
	})
	return code, nil
}

// CompleteRegistration redeems a registration code and creates the account.
// The code is consumed in the same transaction as the user insert, so two
// concurrent registrations on one code yield exactly one account.
func (s *AccountService) CompleteRegistration(ctx context.Context, code, username, email, password string, meta RequestMeta) (domain.User, error) {
	if err := passwordx.Validate(password); err != nil {
		return domain.User{}, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:            idx.New().String(),
		Username:      username,
		Email:         email,
		PasswordHash:  hash,
		Role:          domain.RoleUser,
		Active:        true,
		EmailVerified: true,
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		ac, err := tx.AccessCodes().GetActive(ctx, code, domain.PurposeRegistration)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		if err != nil {
			return fmt.Errorf("lookup code: %w", err)
		}

		if err := tx.AccessCodes().MarkUsed(ctx, ac.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidOrExpiredCode
			}
			return fmt.Errorf("consume code: %w", err)
		}

		if _, err := tx.Users().GetByUsername(ctx, username); err == nil {
			return ErrUsernameAlreadyTaken
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("lookup username: %w", err)
		}

		if err := tx.Users().Create(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailAlreadyExists
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}

	s.audit.Record(ctx, domain.AuditEntry{
		UserID:    user.ID,
		Action:    domain.AuditCompleteRegistration,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return user, nil
}

// ForgotPassword mints a reset code for the account behind the email and
// mails it. Unknown emails are a silent no-op: callers cannot tell whether
// the address exists.
func (s *AccountService) ForgotPassword(ctx context.Context, email string, meta RequestMeta) error {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		s.audit.Record(ctx, domain.AuditEntry{
			Action:    domain.AuditForgotPassword,
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
			Success:   false,
			Details:   map[string]any{"reason": "unknown_email"},
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	err = s.store.AccessCodes().Create(ctx, domain.AccessCode{
		ID:        idx.New().String(),
		Code:      code,
		Purpose:   domain.PurposePasswordReset,
		ExpiresAt: time.Now().UTC().Add(domain.PasswordResetCodeTTL),
		UserID:    user.ID,
	})
	if err != nil {
		return fmt.Errorf("persist code: %w", err)
	}

	s.sendMail(ctx, email, "Password reset",
		fmt.Sprintf("Use this reset code within 1 hour: %s", code))

	s.audit.Record(ctx, domain.AuditEntry{
		UserID:    user.ID,
		Action:    domain.AuditForgotPassword,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return nil
}

// ResetPassword redeems a reset code for the account behind the email and
// replaces its password, revoking every active session in the same
// transaction. The code must be bound to exactly that account.
func (s *AccountService) ResetPassword(ctx context.Context, email, code, newPassword string, meta RequestMeta) error {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	if err := passwordx.Validate(newPassword); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		ac, err := tx.AccessCodes().GetActive(ctx, code, domain.PurposePasswordReset)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		if err != nil {
			return fmt.Errorf("lookup code: %w", err)
		}
		if ac.UserID != user.ID {
			return ErrInvalidOrExpiredCode
		}

		if err := tx.AccessCodes().MarkUsed(ctx, ac.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidOrExpiredCode
			}
			return fmt.Errorf("consume code: %w", err)
		}

		if err := tx.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return fmt.Errorf("update password hash: %w", err)
		}
		if err := tx.RefreshTokens().DeleteAllForUser(ctx, user.ID); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, domain.AuditEntry{
		UserID:    user.ID,
		Action:    domain.AuditResetPassword,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return nil
}

// mailTimeout bounds one background delivery attempt.
const mailTimeout = 10 * time.Second

// sendMail dispatches delivery on a goroutine so a slow relay never stalls
// the request that triggered it. The context is detached from the request's
// cancellation; failures are logged, not surfaced.
func (s *AccountService) sendMail(ctx context.Context, to, subject, body string) {
	if s.mailer == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		sendCtx, cancel := context.WithTimeout(ctx, mailTimeout)
		defer cancel()

		if err := s.mailer.Send(sendCtx, to, subject, body); err != nil {
			s.log.Warn("mail delivery failed", "to", to, "subject", subject, "error", err)
		}
	}()
}
