// Package http wires the services onto the HTTP surface: routing, request
// decoding and validation, authentication middleware, per-endpoint rate
// limits, and the error-to-status mapping.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	_ "github.com/voltplan/voltplan/api"
	"github.com/voltplan/voltplan/internal/service"
	"github.com/voltplan/voltplan/internal/store"
	"github.com/voltplan/voltplan/pkg/httpx"
	"github.com/voltplan/voltplan/pkg/slogx"

	validation "github.com/go-ozzo/ozzo-validation"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RateLimits holds the per-endpoint admission budgets, keyed by source IP.
type RateLimits struct {
	Login                httpx.RateLimitConfig
	Refresh              httpx.RateLimitConfig
	CompleteRegistration httpx.RateLimitConfig
	Invite               httpx.RateLimitConfig
	ForgotPassword       httpx.RateLimitConfig
	ResetPassword        httpx.RateLimitConfig
}

// DefaultRateLimits returns the production budgets.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Login:                httpx.PerMinute(5),
		Refresh:              httpx.PerMinute(10),
		CompleteRegistration: httpx.PerHour(20),
		Invite:               httpx.PerHour(5),
		ForgotPassword:       httpx.PerHour(3),
		ResetPassword:        httpx.PerHour(5),
	}
}

// Disable turns every limiter into a pass-through. Nothing else changes.
func (l RateLimits) Disable() RateLimits {
	for _, c := range []*httpx.RateLimitConfig{
		&l.Login, &l.Refresh, &l.CompleteRegistration,
		&l.Invite, &l.ForgotPassword, &l.ResetPassword,
	} {
		c.Disabled = true
	}
	return l
}

type Router struct {
	auth    *service.AuthService
	account *service.AccountService
	users   *service.UserService
	audit   *service.AuditService
	store   store.Store
	log     *slog.Logger
	limits  RateLimits
}

func NewRouter(
	auth *service.AuthService,
	account *service.AccountService,
	users *service.UserService,
	audit *service.AuditService,
	st store.Store,
	log *slog.Logger,
	limits RateLimits,
) *Router {
	return &Router{
		auth:    auth,
		account: account,
		users:   users,
		audit:   audit,
		store:   st,
		log:     log,
		limits:  limits,
	}
}

// Handler builds the full route table. Middleware order per route is rate
// limit, then authentication, then the role guard.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /auth/login", httpx.Chain(
		http.HandlerFunc(rt.handleLogin),
		httpx.RateLimitByIP(rt.limits.Login),
	))
	mux.Handle("POST /auth/refresh", httpx.Chain(
		http.HandlerFunc(rt.handleRefresh),
		httpx.RateLimitByIP(rt.limits.Refresh),
	))
	mux.Handle("POST /auth/logout", http.HandlerFunc(rt.handleLogout))
	mux.Handle("GET /auth/me", httpx.Chain(
		http.HandlerFunc(rt.handleMe),
		rt.requireAuth,
	))
	mux.Handle("POST /auth/change-password", httpx.Chain(
		http.HandlerFunc(rt.handleChangePassword),
		rt.requireAuth,
	))

	mux.Handle("POST /auth/invite", httpx.Chain(
		http.HandlerFunc(rt.handleInvite),
		httpx.RateLimitByIP(rt.limits.Invite),
		rt.requireAuth,
		rt.requireAdmin,
	))
	mux.Handle("POST /auth/complete-registration", httpx.Chain(
		http.HandlerFunc(rt.handleCompleteRegistration),
		httpx.RateLimitByIP(rt.limits.CompleteRegistration),
	))
	mux.Handle("POST /auth/forgot-password", httpx.Chain(
		http.HandlerFunc(rt.handleForgotPassword),
		httpx.RateLimitByIP(rt.limits.ForgotPassword),
	))
	mux.Handle("POST /auth/reset-password", httpx.Chain(
		http.HandlerFunc(rt.handleResetPassword),
		httpx.RateLimitByIP(rt.limits.ResetPassword),
	))

	admin := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h, rt.requireAuth, rt.requireAdmin)
	}
	mux.Handle("GET /users", admin(rt.handleListUsers))
	mux.Handle("GET /users/{id}", admin(rt.handleGetUser))
	mux.Handle("PUT /users/{id}", admin(rt.handleUpdateUser))
	mux.Handle("DELETE /users/{id}", admin(rt.handleDeleteUser))
	mux.Handle("POST /users/{id}/password", admin(rt.handleSetPassword))
	mux.Handle("GET /audit", admin(rt.handleListAudit))

	mux.HandleFunc("GET /health", rt.handleHealth)
	mux.Handle("GET /swagger/", httpSwagger.Handler())

	return slogx.HTTPMiddleware(rt.log)(mux)
}

// decode parses the JSON body into dst and runs its validation rules.
func decode(r *http.Request, dst validation.Validatable) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	return dst.Validate()
}

// requestMeta captures the caller attributes recorded in the audit trail.
func requestMeta(r *http.Request) service.RequestMeta {
	return service.RequestMeta{
		IP:        httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// internalError logs the fault and hides it behind a generic 500 body.
func (rt *Router) internalError(w http.ResponseWriter, r *http.Request, err error) {
	slogx.FromContext(r.Context()).Error("request failed", "error", err)
	httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
}
