package http

import (
	"errors"
	"net/http"

	"github.com/voltplan/voltplan/internal/service"
	"github.com/voltplan/voltplan/pkg/httpx"
	"github.com/voltplan/voltplan/pkg/passwordx"
)

// handleLogin authenticates by email and password.
//
//	@Summary	Log in with email and password
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		loginRequest	true	"credentials"
//	@Success	200		{object}	domain.TokenPair
//	@Failure	401		{object}	httpx.ErrorResponse
//	@Failure	429		{object}	httpx.ErrorResponse
//	@Router		/auth/login [post]
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	pair, _, err := rt.auth.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if errors.Is(err, service.ErrInvalidCredentials) {
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		rt.internalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, pair)
}

// handleRefresh rotates a refresh token for a new pair.
//
//	@Summary	Exchange a refresh token for a new token pair
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		refreshRequest	true	"refresh token"
//	@Success	200		{object}	domain.TokenPair
//	@Failure	401		{object}	httpx.ErrorResponse
//	@Router		/auth/refresh [post]
func (rt *Router) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := rt.auth.Refresh(r.Context(), req.RefreshToken, requestMeta(r))
	switch {
	case errors.Is(err, service.ErrRefreshTokenExpired):
		httpx.WriteError(w, http.StatusUnauthorized, "Refresh token expired")
		return
	case errors.Is(err, service.ErrInvalidRefreshToken):
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	case err != nil:
		rt.internalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, pair)
}

// handleLogout revokes the presented refresh token.
//
//	@Summary	Log out (revoke a refresh token)
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		refreshRequest	true	"refresh token"
//	@Success	200		{object}	detailResponse
//	@Router		/auth/logout [post]
func (rt *Router) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := rt.auth.Logout(r.Context(), req.RefreshToken, requestMeta(r)); err != nil {
		rt.internalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, detailResponse{Detail: "Logged out"})
}

// handleMe returns the authenticated user.
//
//	@Summary	Current user info
//	@Tags		auth
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	userResponse
//	@Failure	401	{object}	httpx.ErrorResponse
//	@Router		/auth/me [get]
func (rt *Router) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// handleChangePassword rotates the caller's own password.
//
//	@Summary	Change the current user's password
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		changePasswordRequest	true	"passwords"
//	@Success	200		{object}	detailResponse
//	@Failure	400		{object}	httpx.ErrorResponse
//	@Failure	401		{object}	httpx.ErrorResponse
//	@Router		/auth/change-password [post]
func (rt *Router) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req changePasswordRequest
	if err := decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := rt.auth.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword, requestMeta(r))

	var policyErr *passwordx.PolicyError
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	case errors.Is(err, service.ErrPasswordReuse):
		httpx.WriteError(w, http.StatusBadRequest, "New password must differ from the current one")
		return
	case errors.As(err, &policyErr):
		httpx.WriteError(w, http.StatusBadRequest, policyErr.Error())
		return
	case err != nil:
		rt.internalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, detailResponse{Detail: "Password changed"})
}
