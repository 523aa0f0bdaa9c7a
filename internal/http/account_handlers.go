package http

import (
	"errors"
	"net/http"

	"github.com/voltplan/voltplan/internal/service"
	"github.com/voltplan/voltplan/pkg/httpx"
	"github.com/voltplan/voltplan/pkg/passwordx"
)

// forgotPasswordDetail is returned for every forgot-password request, known
// email or not. Any variation would let a caller probe which addresses have
// accounts.
const forgotPasswordDetail = "If the email address is registered, a reset code has been sent."

// handleInvite mints a registration code for a new member.
//
//	@Summary	Invite a new user by email
//	@Tags		account
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		inviteRequest	true	"invitee"
//	@Success	200		{object}	detailResponse
//	@Failure	400		{object}	httpx.ErrorResponse
//	@Failure	403		{object}	httpx.ErrorResponse
//	@Router		/auth/invite [post]
func (rt *Router) handleInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The code travels only by email, never in the response.
	_, err := rt.account.Invite(r.Context(), req.Email, requestMeta(r))
	if errors.Is(err, service.ErrEmailAlreadyExists) {
		httpx.WriteError(w, http.StatusBadRequest, "Email is already registered")
		return
	}
	if err != nil {
		rt.internalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, detailResponse{Detail: "Invitation sent"})
}

// handleCompleteRegistration redeems a registration code into an account.
//
//	@Summary	Complete registration with an invite code
//	@Tags		account
//	@Accept		json
//	@Produce	json
//	@Param		request	body		completeRegistrationRequest	true	"registration"
//	@Success	200		{object}	detailResponse
//	@Failure	400		{object}	httpx.ErrorResponse
//	@Failure	422		{object}	httpx.ErrorResponse
//	@Router		/auth/complete-registration [post]
func (rt *Router) handleCompleteRegistration(w http.ResponseWriter, r *http.Request) {
	var req completeRegistrationRequest
	if err := decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, err := rt.account.CompleteRegistration(r.Context(), req.Code, req.Username, req.Email, req.Password, requestMeta(r))

	var policyErr *passwordx.PolicyError
	switch {
	case errors.Is(err, service.ErrInvalidOrExpiredCode):
		httpx.WriteError(w, http.StatusBadRequest, "Invalid or expired registration code")
		return
	case errors.Is(err, service.ErrEmailAlreadyExists):
		httpx.WriteError(w, http.StatusBadRequest, "Email is already registered")
		return
	case errors.Is(err, service.ErrUsernameAlreadyTaken):
		httpx.WriteError(w, http.StatusBadRequest, "Username is already taken")
		return
	case errors.As(err, &policyErr):
		httpx.WriteError(w, http.StatusUnprocessableEntity, policyErr.Error())
		return
	case err != nil:
		rt.internalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, detailResponse{Detail: "Registration complete"})
}

// handleForgotPassword requests a password-reset code.
//
//	@Summary	Request a password reset code
//	@Tags		account
//	@Accept		json
//	@Produce	json
//	@Param		request	body		forgotPasswordRequest	true	"email"
//	@Success	200		{object}	detailResponse
//	@Failure	429		{object}	httpx.ErrorResponse
//	@Router		/auth/forgot-password [post]
func (rt *Router) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := rt.account.ForgotPassword(r.Context(), req.Email, requestMeta(r)); err != nil {
		// Internal faults are logged but the response stays the generic one.
		rt.log.Error("forgot password failed", "error", err)
	}

	httpx.WriteJSON(w, http.StatusOK, detailResponse{Detail: forgotPasswordDetail})
}

// handleResetPassword redeems a reset code into a new password.
//
//	@Summary	Reset a password with a reset code
//	@Tags		account
//	@Accept		json
//	@Produce	json
//	@Param		request	body		resetPasswordRequest	true	"reset"
//	@Success	200		{object}	detailResponse
//	@Failure	400		{object}	httpx.ErrorResponse
//	@Failure	422		{object}	httpx.ErrorResponse
//	@Router		/auth/reset-password [post]
func (rt *Router) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := rt.account.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword, requestMeta(r))

	var policyErr *passwordx.PolicyError
	switch {
	case errors.Is(err, service.ErrInvalidOrExpiredCode):
		httpx.WriteError(w, http.StatusBadRequest, "Invalid or expired reset code")
		return
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

	httpx.WriteJSON(w, http.StatusOK, detailResponse{Detail: "Password has been reset"})
}
