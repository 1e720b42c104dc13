package http

import (
	"net/http"

	"github.com/aussiebroadwan/portalid/internal/identity/service"
	"github.com/aussiebroadwan/portalid/pkg/httpx"
	"github.com/aussiebroadwan/portalid/pkg/identitysdk"
)

type PasswordHandler struct {
	RecoveryService *service.RecoveryService
}

// HandleForgot godoc
//
//	@Summary		Forgot password
//	@Description	Send a reset link to an active identity. Always 202 for well-formed requests.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			body	body		identitysdk.EmailRequest	true	"email"
//	@Success		202		{object}	identitysdk.AcceptedResponse
//	@Failure		429		{object}	identitysdk.ErrorResponse
//	@Router			/v1/password/forgot [post].
func (h *PasswordHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	var req identitysdk.EmailRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}
	if err := h.RecoveryService.RequestReset(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeAccepted(w)
}

// HandleReset godoc
//
//	@Summary	Reset password
//	@Tags		Password
//	@Accept		json
//	@Produce	json
//	@Param		body	body		identitysdk.TokenPasswordRequest	true	"token, password"
//	@Success	200		{object}	identitysdk.StatusResponse
//	@Failure	400		{object}	identitysdk.ErrorResponse	"weak_password, reset_failed"
//	@Router		/v1/password/reset [post].
func (h *PasswordHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req identitysdk.TokenPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Token == "" || req.Password == "" {
		writeBadRequest(w, "token and password are required")
		return
	}
	if err := h.RecoveryService.ConfirmReset(r.Context(), req.Token, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w)
}
