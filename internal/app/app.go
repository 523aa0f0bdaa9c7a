// Package app assembles the service: configuration, store, services, HTTP
// router, and lifecycle (bootstrap, housekeeping, graceful shutdown).
package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	httpapi "github.com/voltplan/voltplan/internal/http"
	"github.com/voltplan/voltplan/internal/service"
	"github.com/voltplan/voltplan/internal/store/drivers/sqlite"
	"github.com/voltplan/voltplan/pkg/cryptox"
	"github.com/voltplan/voltplan/pkg/jwtx"
	"github.com/voltplan/voltplan/pkg/mailx"
	"github.com/voltplan/voltplan/pkg/slogx"
)

// Run boots the application and blocks until ctx is cancelled, then shuts
// down gracefully within the configured grace period.
func Run(ctx context.Context, cfg Config) error {
	log := slogx.New(slogx.Config{
		Service: "voltplan",
		Version: Version,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	cryptox.SetPepper(cfg.PasswordPepper)

	st, err := sqlite.NewStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.ApplyMigrations(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	issuer := jwtx.NewIssuer([]byte(cfg.JWTSecret), cfg.AccessTTL, cfg.RefreshTTL)

	var mailer mailx.Mailer
	if cfg.MailConfigured() {
		mailer = &mailx.SMTPMailer{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			StartTLS: cfg.SMTPStartTLS,
		}
	} else {
		log.Warn("smtp not configured, access codes will not be emailed")
	}

	audit := service.NewAuditService(st, log)
	auth := service.NewAuthService(st, issuer, audit, log)
	account := service.NewAccountService(st, mailer, audit, log)
	users := service.NewUserService(st, audit, log)

	if cfg.BootstrapAdminPassword != "" {
		err := service.EnsureAdmin(ctx, st, log,
			cfg.BootstrapAdminUsername, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	housekeeping := service.NewHousekeeping(st, cfg.HousekeepingInterval, log)
	housekeeping.Start(ctx)
	defer housekeeping.Stop()

	limits := httpapi.DefaultRateLimits()
	if cfg.TestMode {
		log.Warn("test mode enabled, rate limiting disabled")
		limits = limits.Disable()
	}

	router := httpapi.NewRouter(auth, account, users, audit, st, log, limits)

	server := &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down", "grace", cfg.ShutdownGrace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
