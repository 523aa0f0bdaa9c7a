package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voltplan/voltplan/internal/domain"
	"github.com/voltplan/voltplan/internal/store"
	"github.com/voltplan/voltplan/pkg/cryptox"
	"github.com/voltplan/voltplan/pkg/idx"
	"github.com/voltplan/voltplan/pkg/passwordx"
)

// EnsureAdmin seeds the initial admin account when the users table is empty.
// Subsequent startups are a no-op, so the credentials in the config only
// matter on first boot.
func EnsureAdmin(ctx context.Context, st store.Store, log *slog.Logger, username, email, password string) error {
	empty, err := st.Users().IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("check users table: %w", err)
	}
	if !empty {
		return nil
	}

	if err := passwordx.Validate(password); err != nil {
		log.Warn("bootstrap admin password does not meet the policy; change it after first login")
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}

	admin := domain.User{
		ID:            idx.New().String(),
		Username:      username,
		Email:         email,
		PasswordHash:  hash,
		Role:          domain.RoleAdmin,
		Active:        true,
		EmailVerified: true,
	}
	if err := st.Users().Create(ctx, admin); err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	log.Info("bootstrap admin created", "username", username, "email", email)
	return nil
}
