package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/aussiebroadwan/portalid/internal/identity/service"
	"github.com/aussiebroadwan/portalid/pkg/httpx"
	"github.com/aussiebroadwan/portalid/pkg/identitysdk"
)

type AccreditationHandler struct {
	AccreditationService *service.AccreditationService
}

func toAccreditationResponse(req domain.AccreditationRequest) identitysdk.AccreditationRequest {
	out := identitysdk.AccreditationRequest{
		ID:                  req.ID,
		RequesterIdentityID: req.RequesterIdentityID,
		RoleCode:            req.RequestedRoleCode,
		Status:              string(req.Status),
		CreatedAt:           req.CreatedAt,
		DecidedAt:           req.DecidedAt,
	}
	if req.ApproverID != nil {
		out.ApproverID = *req.ApproverID
	}
	if req.RejectionNote != nil {
		out.RejectionNote = *req.RejectionNote
	}
	return out
}

// HandleApply godoc
//
//	@Summary		Apply for accreditation
//	@Description	File a role request for an email address, creating a draft identity when none exists.
//	@Tags			Accreditation
//	@Accept			json
//	@Produce		json
//	@Param			body	body		identitysdk.ApplyRequest	true	"email, role_code"
//	@Success		202		{object}	identitysdk.AcceptedResponse
//	@Failure		400		{object}	identitysdk.ErrorResponse	"invalid_email, unknown_role"
//	@Router			/v1/accreditations/apply [post].
func (h *AccreditationHandler) HandleApply(w http.ResponseWriter, r *http.Request) {
	var req identitysdk.ApplyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Email == "" || req.RoleCode == "" {
		writeBadRequest(w, "email and role_code are required")
		return
	}
	if err := h.AccreditationService.Apply(r.Context(), req.Email, req.RoleCode); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeAccepted(w)
}

// HandleSubmit godoc
//
//	@Summary	Request a role for the caller
//	@Tags		Accreditation
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		body	body		identitysdk.SubmitAccreditationRequest	true	"role_code"
//	@Success	201		{object}	identitysdk.AccreditationRequest
//	@Failure	400		{object}	identitysdk.ErrorResponse	"unknown_role"
//	@Failure	401		{object}	identitysdk.ErrorResponse
//	@Failure	404		{object}	identitysdk.ErrorResponse
//	@Router		/v1/accreditations [post].
func (h *AccreditationHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req identitysdk.SubmitAccreditationRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.RoleCode == "" {
		writeBadRequest(w, "role_code is required")
		return
	}
	actor := actorFrom(r)
	created, err := h.AccreditationService.Submit(r.Context(), actor, actor.ID, req.RoleCode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAccreditationResponse(created))
}

// HandleListPending godoc
//
//	@Summary	List pending accreditation requests
//	@Tags		Accreditation
//	@Produce	json
//	@Security	BearerAuth
//	@Param		limit	query		int	false	"max results (default 50, max 500)"
//	@Success	200		{object}	identitysdk.PendingAccreditationsResponse
//	@Failure	403		{object}	identitysdk.ErrorResponse
//	@Router		/v1/accreditations/pending [get].
func (h *AccreditationHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	reqs, err := h.AccreditationService.ListPending(r.Context(), actorFrom(r), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := identitysdk.PendingAccreditationsResponse{
		Requests: make([]identitysdk.AccreditationRequest, 0, len(reqs)),
	}
	for _, req := range reqs {
		out.Requests = append(out.Requests, toAccreditationResponse(req))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleGet godoc
//
//	@Summary	Get an accreditation request
//	@Tags		Accreditation
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"request id"
//	@Success	200	{object}	identitysdk.AccreditationRequest
//	@Failure	404	{object}	identitysdk.ErrorResponse
//	@Router		/v1/accreditations/{id} [get].
func (h *AccreditationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	req, err := h.AccreditationService.Get(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAccreditationResponse(req))
}

// HandleDecide godoc
//
//	@Summary		Decide an accreditation request
//	@Description	Approve or reject a pending request. Exactly one decision succeeds; later ones get 409.
//	@Tags			Accreditation
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string						true	"request id"
//	@Param			body	body		identitysdk.DecisionRequest	true	"decision, note"
//	@Success		200		{object}	identitysdk.AccreditationRequest
//	@Failure		400		{object}	identitysdk.ErrorResponse	"note_required, invalid_decision"
//	@Failure		403		{object}	identitysdk.ErrorResponse
//	@Failure		404		{object}	identitysdk.ErrorResponse
//	@Failure		409		{object}	identitysdk.ErrorResponse	"already_decided, conflict"
//	@Router			/v1/accreditations/{id}/decision [post].
func (h *AccreditationHandler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	var req identitysdk.DecisionRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	decided, err := h.AccreditationService.Decide(r.Context(), actorFrom(r),
		r.PathValue("id"), domain.Decision(req.Decision), req.Note)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAccreditationResponse(decided))
}
