package http

import (
	"net/http"

	"github.com/aussiebroadwan/portalid/internal/identity/service"
	"github.com/aussiebroadwan/portalid/pkg/httpx"
	"github.com/aussiebroadwan/portalid/pkg/identitysdk"
)

type IdentityHandler struct {
	AdminService *service.AdminService
}

// HandleGet godoc
//
//	@Summary	Get an identity
//	@Tags		Identities
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"identity id"
//	@Success	200	{object}	identitysdk.IdentityResponse
//	@Failure	404	{object}	identitysdk.ErrorResponse
//	@Router		/v1/identities/{id} [get].
func (h *IdentityHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ident, err := h.AdminService.Get(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	roles := ident.Roles
	if roles == nil {
		roles = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, identitysdk.IdentityResponse{
		ID:        ident.ID,
		Email:     ident.Email,
		Status:    string(ident.Status),
		Roles:     roles,
		CreatedAt: ident.CreatedAt,
		UpdatedAt: ident.UpdatedAt,
	})
}

// HandleDisable godoc
//
//	@Summary	Disable an identity
//	@Tags		Identities
//	@Security	BearerAuth
//	@Param		id	path	string	true	"identity id"
//	@Success	204
//	@Failure	404	{object}	identitysdk.ErrorResponse
//	@Failure	409	{object}	identitysdk.ErrorResponse	"conflict"
//	@Router		/v1/identities/{id}/disable [post].
func (h *IdentityHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	if err := h.AdminService.Disable(r.Context(), actorFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
