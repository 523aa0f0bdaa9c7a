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
	"github.com/voltplan/voltplan/pkg/jwtx"
	"github.com/voltplan/voltplan/pkg/passwordx"
)

// dummyHash is verified against on login when the email is unknown, so the
// unknown-email and wrong-password paths cost roughly the same.
var dummyHash string

func init() {
	h, err := cryptox.HashPassword("dummy-timing-equalizer")
	if err != nil {
		panic(fmt.Sprintf("init dummy hash: %v", err))
	}
	dummyHash = h
}

// AuthService implements the session lifecycle: credential login, refresh
// rotation, logout, bearer resolution, and password change.
type AuthService struct {
	store  store.Store
	issuer *jwtx.Issuer
	audit  *AuditService
	log    *slog.Logger
}

func NewAuthService(st store.Store, issuer *jwtx.Issuer, audit *AuditService, log *slog.Logger) *AuthService {
	return &AuthService{store: st, issuer: issuer, audit: audit, log: log}
}

// Login verifies the email/password pair and mints a fresh token pair. Every
// failure mode (unknown email, wrong password, deactivated account) collapses
// into ErrInvalidCredentials so callers cannot probe which part was wrong.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (domain.TokenPair, domain.User, error) {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		_ = cryptox.VerifyPassword(password, dummyHash)
		s.recordAuth(ctx, "", domain.AuditLogin, meta, false, map[string]any{"reason": "unknown_email"})
		return domain.TokenPair{}, domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.TokenPair{}, domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		s.recordAuth(ctx, user.ID, domain.AuditLogin, meta, false, map[string]any{"reason": "bad_password"})
		return domain.TokenPair{}, domain.User{}, ErrInvalidCredentials
	}

	if !user.Active {
		s.recordAuth(ctx, user.ID, domain.AuditLogin, meta, false, map[string]any{"reason": "inactive"})
		return domain.TokenPair{}, domain.User{}, ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return domain.TokenPair{}, domain.User{}, err
	}

	if err := s.store.Users().RecordLogin(ctx, user.ID); err != nil {
		s.log.Warn("record last login failed", "user_id", user.ID, "error", err)
	}

	s.recordAuth(ctx, user.ID, domain.AuditLogin, meta, true, nil)
	return pair, user, nil
}

// Refresh rotates a refresh token: the stored row is looked up and consumed
// before any signature work, so a revoked token is rejected as invalid no
// matter what its claims say. An expired row is still consumed; redemption
// is what reaps it. Concurrent presenters of the same token race for the
// row delete and exactly one wins.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (domain.TokenPair, error) {
	var (
		pair    domain.TokenPair
		userID  string
		expired bool
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		row, err := tx.RefreshTokens().GetByToken(ctx, refreshToken)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidRefreshToken
		}
		if err != nil {
			return fmt.Errorf("lookup refresh token: %w", err)
		}
		userID = row.UserID

		if err := tx.RefreshTokens().Consume(ctx, refreshToken); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefreshToken
			}
			return fmt.Errorf("consume refresh token: %w", err)
		}

		// Returning nil here lets the consume commit; the expired error
		// surfaces after the transaction.
		if time.Now().After(row.ExpiresAt) {
			expired = true
			return nil
		}

		claims, err := s.issuer.Verify(refreshToken, jwtx.TokenTypeRefresh)
		if errors.Is(err, jwtx.ErrExpired) {
			expired = true
			return nil
		}
		if err != nil || claims.Subject != row.UserID {
			return ErrInvalidRefreshToken
		}

		user, err := tx.Users().GetByID(ctx, row.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefreshToken
			}
			return fmt.Errorf("lookup user: %w", err)
		}
		if !user.Active {
			return ErrInvalidRefreshToken
		}

		pair, err = s.issuePairTx(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			s.recordAuth(ctx, userID, domain.AuditRefresh, meta, false, map[string]any{"reason": "invalid"})
		}
		return domain.TokenPair{}, err
	}
	if expired {
		s.recordAuth(ctx, userID, domain.AuditRefresh, meta, false, map[string]any{"reason": "expired"})
		return domain.TokenPair{}, ErrRefreshTokenExpired
	}

	s.recordAuth(ctx, userID, domain.AuditRefresh, meta, true, nil)
	return pair, nil
}

// Logout revokes the presented refresh token. Revoking a token that is
// already gone is not an error, so logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, meta RequestMeta) error {
	var userID string
	if claims, err := s.issuer.Verify(refreshToken, jwtx.TokenTypeRefresh); err == nil {
		userID = claims.Subject
	}

	err := s.store.RefreshTokens().Consume(ctx, refreshToken)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	s.recordAuth(ctx, userID, domain.AuditLogout, meta, true, nil)
	return nil
}

// ResolveAccessToken validates a bearer access token and loads its user. A
// valid token whose user has since been deleted yields ErrUserNotFound;
// deactivated users fail with ErrInvalidAccessToken like any bad token.
func (s *AuthService) ResolveAccessToken(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.issuer.Verify(token, jwtx.TokenTypeAccess)
	if err != nil {
		return domain.User{}, ErrInvalidAccessToken
	}

	user, err := s.store.Users().GetByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.Active {
		return domain.User{}, ErrInvalidAccessToken
	}

	return user, nil
}

// ChangePassword verifies the current password, enforces the policy on the
// new one, and revokes every active session in the same transaction as the
// hash update.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string, meta RequestMeta) error {
	user, err := s.store.Users().GetByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	if err := cryptox.VerifyPassword(currentPassword, user.PasswordHash); err != nil {
		s.recordAuth(ctx, userID, domain.AuditChangePassword, meta, false, map[string]any{"reason": "bad_current_password"})
		return ErrInvalidCredentials
	}

	if err := passwordx.Validate(newPassword); err != nil {
		return err
	}

	if cryptox.VerifyPassword(newPassword, user.PasswordHash) == nil {
		return ErrPasswordReuse
	}

	newHash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, userID, newHash); err != nil {
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

	s.recordAuth(ctx, userID, domain.AuditChangePassword, meta, true, nil)
	return nil
}

// issuePair mints and persists a token pair outside a transaction.
func (s *AuthService) issuePair(ctx context.Context, userID string) (domain.TokenPair, error) {
	return s.mintPair(ctx, s.store.RefreshTokens(), userID)
}

// issuePairTx mints and persists a token pair inside an open transaction.
func (s *AuthService) issuePairTx(ctx context.Context, tx store.Tx, userID string) (domain.TokenPair, error) {
	return s.mintPair(ctx, tx.RefreshTokens(), userID)
}

func (s *AuthService) mintPair(ctx context.Context, tokens store.RefreshTokens, userID string) (domain.TokenPair, error) {
	access, err := s.issuer.SignAccess(userID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, expiresAt, err := s.issuer.SignRefresh(userID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	err = tokens.Create(ctx, domain.RefreshToken{
		ID:        idx.New().String(),
		Token:     refresh,
		UserID:    userID,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

func (s *AuthService) recordAuth(ctx context.Context, userID, action string, meta RequestMeta, success bool, details map[string]any) {
	s.audit.Record(ctx, domain.AuditEntry{
		UserID:    userID,
		Action:    action,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   success,
		Details:   details,
	})
}
