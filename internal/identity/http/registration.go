package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/portalid/internal/identity/service"
	"github.com/aussiebroadwan/portalid/pkg/httpx"
	"github.com/aussiebroadwan/portalid/pkg/identitysdk"
)

type RegistrationHandler struct {
	RegistrationService *service.RegistrationService
}

// HandleRegister godoc
//
//	@Summary		Register
//	@Description	Create an identity awaiting email verification and send the verification link.
//	@Description	The response does not reveal whether the address is already registered.
//	@Tags			Registration
//	@Accept			json
//	@Produce		json
//	@Param			body	body		identitysdk.RegisterRequest		true	"email, password"
//	@Success		202		{object}	identitysdk.AcceptedResponse
//	@Failure		400		{object}	identitysdk.ErrorResponse	"invalid_email, weak_password"
//	@Failure		429		{object}	identitysdk.ErrorResponse
//	@Router			/v1/registrations [post].
func (h *RegistrationHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req identitysdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	_, err := h.RegistrationService.Register(r.Context(), req.Email, req.Password)
	if err != nil && !errors.Is(err, service.ErrDuplicateEmail) {
		writeServiceError(w, r, err)
		return
	}
	writeAccepted(w)
}

// HandleVerify godoc
//
//	@Summary	Verify email
//	@Tags		Registration
//	@Accept		json
//	@Produce	json
//	@Param		body	body		identitysdk.TokenRequest	true	"token"
//	@Success	200		{object}	identitysdk.StatusResponse
//	@Failure	400		{object}	identitysdk.ErrorResponse	"invalid_or_expired_token"
//	@Router		/v1/registrations/verify [post].
func (h *RegistrationHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req identitysdk.TokenRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Token == "" {
		writeBadRequest(w, "token is required")
		return
	}
	if err := h.RegistrationService.VerifyEmail(r.Context(), req.Token); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w)
}

// HandleResend godoc
//
//	@Summary	Resend verification link
//	@Tags		Registration
//	@Accept		json
//	@Produce	json
//	@Param		body	body		identitysdk.EmailRequest	true	"email"
//	@Success	202		{object}	identitysdk.AcceptedResponse
//	@Router		/v1/registrations/resend [post].
func (h *RegistrationHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	var req identitysdk.EmailRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}
	if err := h.RegistrationService.ResendVerification(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeAccepted(w)
}

// HandleComplete godoc
//
//	@Summary		Complete registration
//	@Description	Set the first password of an approved applicant and activate the identity.
//	@Tags			Registration
//	@Accept			json
//	@Produce		json
//	@Param			body	body		identitysdk.TokenPasswordRequest	true	"token, password"
//	@Success		200		{object}	identitysdk.StatusResponse
//	@Failure		400		{object}	identitysdk.ErrorResponse	"invalid_or_expired_token, weak_password"
//	@Router			/v1/registrations/complete [post].
func (h *RegistrationHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	var req identitysdk.TokenPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Token == "" || req.Password == "" {
		writeBadRequest(w, "token and password are required")
		return
	}
	if err := h.RegistrationService.CompleteRegistration(r.Context(), req.Token, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w)
}
