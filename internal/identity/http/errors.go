package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/aussiebroadwan/portalid/internal/identity/service"
	"github.com/aussiebroadwan/portalid/pkg/httpx"
	"github.com/aussiebroadwan/portalid/pkg/identitysdk"
	"github.com/aussiebroadwan/portalid/pkg/slogx"
)

// writeServiceError maps workflow errors onto the error envelope. Anything
// it does not recognise is logged and reported as a server error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *service.PolicyError
	switch {
	case errors.As(err, &pe):
		httpx.WriteError(w, http.StatusBadRequest, identitysdk.ErrorCodeWeakPassword,
			strings.Join(pe.Violations, "; "))
	case errors.Is(err, service.ErrInvalidEmail):
		httpx.WriteError(w, http.StatusBadRequest, identitysdk.ErrorCodeInvalidEmail, "email address is not valid")
	case errors.Is(err, service.ErrUnknownRole):
		httpx.WriteError(w, http.StatusBadRequest, identitysdk.ErrorCodeUnknownRole, "role code is not recognised")
	case errors.Is(err, service.ErrNoteRequired):
		httpx.WriteError(w, http.StatusBadRequest, identitysdk.ErrorCodeNoteRequired, "a rejection needs a note")
	case errors.Is(err, service.ErrInvalidDecision):
		httpx.WriteError(w, http.StatusBadRequest, identitysdk.ErrorCodeInvalidDecision,
			"decision must be Approve or Reject")
	case errors.Is(err, service.ErrInvalidToken):
		httpx.WriteError(w, http.StatusBadRequest, identitysdk.ErrorCodeInvalidToken, "link is invalid or has expired")
	case errors.Is(err, service.ErrResetFailed):
		httpx.WriteError(w, http.StatusBadRequest, identitysdk.ErrorCodeResetFailed, "password could not be reset")
	case errors.Is(err, service.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, identitysdk.ErrorCodeForbidden, "not permitted")
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, identitysdk.ErrorCodeNotFound, "not found")
	case errors.Is(err, service.ErrAlreadyDecided):
		httpx.WriteError(w, http.StatusConflict, identitysdk.ErrorCodeAlreadyDecided, "request already decided")
	case errors.Is(err, service.ErrIllegalState):
		httpx.WriteError(w, http.StatusConflict, identitysdk.ErrorCodeConflict,
			"identity is not in a state that allows this")
	case errors.Is(err, service.ErrValidation):
		httpx.WriteError(w, http.StatusBadRequest, identitysdk.ErrorCodeInvalidRequest, "invalid request")
	default:
		slogx.FromContext(r.Context()).Error("request failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, identitysdk.ErrorCodeServerError, "internal server error")
	}
}

func writeBadRequest(w http.ResponseWriter, desc string) {
	httpx.WriteError(w, http.StatusBadRequest, identitysdk.ErrorCodeInvalidRequest, desc)
}

func writeAccepted(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusAccepted, identitysdk.AcceptedResponse{
		Status:  "accepted",
		Message: "if the address is eligible, an email is on its way",
	})
}

func writeOK(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusOK, identitysdk.StatusResponse{Status: "ok"})
}

// actorFrom converts the verified bearer principal into the workflow actor.
func actorFrom(r *http.Request) domain.Actor {
	p, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		return domain.Anonymous
	}
	return domain.Actor{ID: p.Subject, Scopes: p.Scopes}
}
