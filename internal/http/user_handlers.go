package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/voltplan/voltplan/internal/service"
	"github.com/voltplan/voltplan/pkg/httpx"
	"github.com/voltplan/voltplan/pkg/passwordx"
)

// handleListUsers lists every account.
//
//	@Summary	List users
//	@Tags		users
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{array}		userResponse
//	@Failure	403	{object}	httpx.ErrorResponse
//	@Router		/users [get]
func (rt *Router) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := rt.users.List(r.Context())
	if err != nil {
		rt.internalError(w, r, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// handleGetUser returns one account.
//
//	@Summary	Get a user
//	@Tags		users
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"user id"
//	@Success	200	{object}	userResponse
//	@Failure	404	{object}	httpx.ErrorResponse
//	@Router		/users/{id} [get]
func (rt *Router) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := rt.users.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, service.ErrUserNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		rt.internalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// handleUpdateUser changes a user's role.
//
//	@Summary	Update a user's role
//	@Tags		users
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string				true	"user id"
//	@Param		request	body		updateUserRequest	true	"role"
//	@Success	200		{object}	detailResponse
//	@Failure	400		{object}	httpx.ErrorResponse
//	@Failure	404		{object}	httpx.ErrorResponse
//	@Router		/users/{id} [put]
func (rt *Router) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := userFrom(r.Context())

	var req updateUserRequest
	if err := decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := rt.users.UpdateRole(r.Context(), actor.ID, r.PathValue("id"), req.Role, requestMeta(r))
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "User not found")
		return
	case errors.Is(err, service.ErrLastAdminProtected):
		httpx.WriteError(w, http.StatusBadRequest, "Cannot demote the last admin")
		return
	case err != nil:
		rt.internalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, detailResponse{Detail: "User updated"})
}

// handleDeleteUser removes an account.
//
//	@Summary	Delete a user
//	@Tags		users
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"user id"
//	@Success	200	{object}	detailResponse
//	@Failure	403	{object}	httpx.ErrorResponse
//	@Failure	404	{object}	httpx.ErrorResponse
//	@Router		/users/{id} [delete]
func (rt *Router) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := userFrom(r.Context())

	err := rt.users.Delete(r.Context(), actor.ID, r.PathValue("id"), requestMeta(r))
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "User not found")
		return
	case errors.Is(err, service.ErrLastAdminProtected):
		httpx.WriteError(w, http.StatusForbidden, "Cannot delete the last admin")
		return
	case err != nil:
		rt.internalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, detailResponse{Detail: "User deleted"})
}

// handleSetPassword replaces a user's password without the current one.
//
//	@Summary	Set a user's password (admin)
//	@Tags		users
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string				true	"user id"
//	@Param		request	body		setPasswordRequest	true	"new password"
//	@Success	200		{object}	detailResponse
//	@Failure	404		{object}	httpx.ErrorResponse
//	@Failure	422		{object}	httpx.ErrorResponse
//	@Router		/users/{id}/password [post]
func (rt *Router) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	actor, _ := userFrom(r.Context())

	var req setPasswordRequest
	if err := decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := rt.users.SetPassword(r.Context(), actor.ID, r.PathValue("id"), req.NewPassword, requestMeta(r))

	var policyErr *passwordx.PolicyError
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "User not found")
		return
	case errors.As(err, &policyErr):
		httpx.WriteError(w, http.StatusUnprocessableEntity, policyErr.Error())
		return
	case err != nil:
		rt.internalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, detailResponse{Detail: "Password updated"})
}

// handleListAudit returns recent audit entries, newest first.
//
//	@Summary	List recent audit entries
//	@Tags		audit
//	@Produce	json
//	@Security	BearerAuth
//	@Param		limit	query		int	false	"max entries (default 100)"
//	@Success	200		{array}		auditEntryResponse
//	@Failure	403		{object}	httpx.ErrorResponse
//	@Router		/audit [get]
func (rt *Router) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpx.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := rt.audit.ListRecent(r.Context(), limit)
	if err != nil {
		rt.internalError(w, r, err)
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAuditEntryResponse(e))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// handleHealth reports liveness, including a database ping.
//
//	@Summary	Health check
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	healthResponse
//	@Failure	503	{object}	healthResponse
//	@Router		/health [get]
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := rt.store.Ping(r.Context()); err != nil {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
