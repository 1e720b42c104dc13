package identitysdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Session carries a bearer token for the authenticated endpoints.
type Session struct {
	client      *Client
	accessToken string
}

// SubmitAccreditation requests roleCode for the token's subject.
func (s *Session) SubmitAccreditation(ctx context.Context, roleCode string) (*AccreditationRequest, error) {
	resp, err := s.client.do(ctx, http.MethodPost, "/v1/accreditations", s.accessToken,
		SubmitAccreditationRequest{RoleCode: roleCode})
	if err != nil {
		return nil, err
	}
	var req AccreditationRequest
	if err := decodeJSON(resp, &req, http.StatusCreated); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListPending returns the review queue, oldest first.
// Requires: accreditation:review scope
func (s *Session) ListPending(ctx context.Context, limit int) (*PendingAccreditationsResponse, error) {
	path := "/v1/accreditations/pending"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	resp, err := s.client.do(ctx, http.MethodGet, path, s.accessToken, nil)
	if err != nil {
		return nil, err
	}
	var out PendingAccreditationsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccreditation fetches one request.
// Requires: accreditation:review scope
func (s *Session) GetAccreditation(ctx context.Context, id string) (*AccreditationRequest, error) {
	resp, err := s.client.do(ctx, http.MethodGet, "/v1/accreditations/"+url.PathEscape(id), s.accessToken, nil)
	if err != nil {
		return nil, err
	}
	var req AccreditationRequest
	if err := decodeJSON(resp, &req, http.StatusOK); err != nil {
		return nil, err
	}
	return &req, nil
}

// Decide approves or rejects a pending request. Rejection needs a note.
// Requires: accreditation:review scope
func (s *Session) Decide(ctx context.Context, id, decision, note string) (*AccreditationRequest, error) {
	resp, err := s.client.do(ctx, http.MethodPost, "/v1/accreditations/"+url.PathEscape(id)+"/decision",
		s.accessToken, DecisionRequest{Decision: decision, Note: note})
	if err != nil {
		return nil, err
	}
	var req AccreditationRequest
	if err := decodeJSON(resp, &req, http.StatusOK); err != nil {
		return nil, err
	}
	return &req, nil
}

// GetIdentity fetches an identity with its roles.
// Requires: identity:admin or accreditation:review scope
func (s *Session) GetIdentity(ctx context.Context, id string) (*IdentityResponse, error) {
	resp, err := s.client.do(ctx, http.MethodGet, "/v1/identities/"+url.PathEscape(id), s.accessToken, nil)
	if err != nil {
		return nil, err
	}
	var out IdentityResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// DisableIdentity disables an active identity and ends its sessions.
// Requires: identity:admin scope
func (s *Session) DisableIdentity(ctx context.Context, id string) error {
	resp, err := s.client.do(ctx, http.MethodPost, "/v1/identities/"+url.PathEscape(id)+"/disable", s.accessToken, nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusNoContent)
}
