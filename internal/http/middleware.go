package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/voltplan/voltplan/internal/domain"
	"github.com/voltplan/voltplan/internal/service"
	"github.com/voltplan/voltplan/pkg/httpx"
)

type contextKey struct{ name string }

var userContextKey = contextKey{"user"}

// userFrom returns the authenticated user placed in the context by
// requireAuth. The second return is false on unauthenticated routes.
func userFrom(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userContextKey).(domain.User)
	return u, ok
}

// requireAuth resolves the bearer access token and stores the user in the
// request context. 401 on a missing or bad token, 404 when the token is
// valid but the user no longer exists.
func (rt *Router) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		user, err := rt.auth.ResolveAccessToken(r.Context(), token)
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			httpx.WriteError(w, http.StatusNotFound, "User not found")
			return
		case errors.Is(err, service.ErrInvalidAccessToken):
			httpx.WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		case err != nil:
			rt.internalError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin guards admin-only routes. Must sit inside requireAuth.
func (rt *Router) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(r.Context())
		if !ok || !user.IsAdmin() {
			httpx.WriteError(w, http.StatusForbidden, "Admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
