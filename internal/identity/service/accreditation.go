package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/aussiebroadwan/portalid/internal/identity/obs"
	"github.com/aussiebroadwan/portalid/internal/identity/store"
	"github.com/aussiebroadwan/portalid/pkg/idx"
	"github.com/aussiebroadwan/portalid/pkg/slogx"
)

const (
	DefaultCompletionTTL = 72 * time.Hour
	DefaultPendingLimit  = 50
	MaxPendingLimit      = 500
)

// AccreditationService handles role requests and reviewer decisions.
type AccreditationService struct {
	Store    store.Store
	Registry *Registry
	Vault    *TokenVault
	Mailer   EmailDispatcher
	Links    LinkBuilder
	Metrics  *obs.Metrics
	Clock    Clock

	CompletionTTL time.Duration
}

// Submit files a Pending request for requesterID. The actor must be the
// requester or a reviewer. Duplicate pending requests are allowed.
func (s *AccreditationService) Submit(
	ctx context.Context,
	actor domain.Actor,
	requesterID, roleCode string,
) (domain.AccreditationRequest, error) {
	log := slogx.FromContext(ctx)

	if actor.IsAnonymous() ||
		(actor.ID != requesterID && !actor.HasScope(domain.ScopeAccreditationReview)) {
		return domain.AccreditationRequest{}, ErrForbidden
	}

	var req domain.AccreditationRequest
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.requireRole(ctx, tx, roleCode); err != nil {
			return err
		}
		if _, err := s.Registry.In(tx).Get(ctx, requesterID); err != nil {
			return err
		}
		var err error
		req, err = s.createRequest(ctx, tx, requesterID, roleCode)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
			return domain.AccreditationRequest{}, err
		}
		log.Error("accreditation submit failed", slog.Any("error", err))
		return domain.AccreditationRequest{}, fmt.Errorf("submit accreditation: %w", err)
	}

	log.Info("accreditation requested",
		slog.String("request_id", req.ID),
		slog.String("identity_id", requesterID),
		slog.String("role", roleCode),
		slog.String("actor_id", actor.ID),
	)
	s.Metrics.Workflow("submit_accreditation", "ok")
	return req, nil
}

// Apply is the anonymous entry point: it resolves the identity for email,
// creating a Draft one awaiting approval if none exists, and files a
// request. The result does not reveal whether the address was known.
func (s *AccreditationService) Apply(ctx context.Context, email, roleCode string) error {
	log := slogx.FromContext(ctx)

	addr, err := normalizeAndValidateEmail(email)
	if err != nil {
		return err
	}

	var req domain.AccreditationRequest
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.requireRole(ctx, tx, roleCode); err != nil {
			return err
		}

		reg := s.Registry.In(tx)
		ident, err := reg.FindByEmail(ctx, addr)
		if errors.Is(err, ErrNotFound) {
			ident, err = reg.Create(ctx, addr, "")
			if err != nil {
				return err
			}
			err = reg.SubmitForApproval(ctx, ident.ID)
		}
		if err != nil {
			return err
		}

		req, err = s.createRequest(ctx, tx, ident.ID, roleCode)
		return err
	})
	if errors.Is(err, ErrValidation) {
		return err
	}
	if err != nil {
		log.Error("accreditation application failed", slog.Any("error", err))
		return fmt.Errorf("apply for accreditation: %w", err)
	}

	log.Info("accreditation application received",
		slog.String("request_id", req.ID), slog.String("role", roleCode))
	s.Metrics.Workflow("apply_accreditation", "ok")
	return nil
}

// Decide records a reviewer's decision on a Pending request. Exactly one
// concurrent decision wins; the rest observe ErrAlreadyDecided. Approval
// grants the role idempotently and moves the requester forward; rejection
// requires a non-blank note.
//
// Scope, decision and note are checked before the request is looked up, so
// a blank rejection note reports ErrNoteRequired even for an unknown id.
func (s *AccreditationService) Decide(
	ctx context.Context,
	actor domain.Actor,
	requestID string,
	decision domain.Decision,
	note string,
) (domain.AccreditationRequest, error) {
	log := slogx.FromContext(ctx)

	if actor.IsAnonymous() || !actor.HasScope(domain.ScopeAccreditationReview) {
		return domain.AccreditationRequest{}, ErrForbidden
	}
	if !decision.Valid() {
		return domain.AccreditationRequest{}, ErrInvalidDecision
	}
	note = strings.TrimSpace(note)
	if decision == domain.DecisionReject && note == "" {
		return domain.AccreditationRequest{}, ErrNoteRequired
	}

	status, notePtr := domain.RequestApproved, (*string)(nil)
	if decision == domain.DecisionReject {
		status, notePtr = domain.RequestRejected, &note
	}

	var (
		req  domain.AccreditationRequest
		mail *domain.Email
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		accr := tx.Accreditations()

		ok, err := accr.DecidePending(ctx, requestID, status, actor.ID, notePtr, s.Clock.Now())
		if err != nil {
			return fmt.Errorf("decide request: %w", err)
		}
		if !ok {
			_, err := accr.GetRequestByID(ctx, requestID)
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("get request: %w", err)
			}
			return ErrAlreadyDecided
		}

		if req, err = accr.GetRequestByID(ctx, requestID); err != nil {
			return fmt.Errorf("get request: %w", err)
		}

		if decision == domain.DecisionApprove {
			mail, err = s.approve(ctx, tx, req)
		} else {
			mail, err = s.reject(ctx, tx, req)
		}
		return err
	})
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyDecided):
		log.Warn("accreditation decision refused",
			slog.String("request_id", requestID), slog.Any("error", err))
		s.Metrics.Workflow("decide_accreditation", "conflict")
		return domain.AccreditationRequest{}, err
	case errors.Is(err, ErrIllegalState):
		log.Warn("accreditation decision conflicts with identity state",
			slog.String("request_id", requestID), slog.Any("error", err))
		s.Metrics.Workflow("decide_accreditation", "conflict")
		return domain.AccreditationRequest{}, err
	case err != nil:
		log.Error("accreditation decision failed", slog.Any("error", err))
		return domain.AccreditationRequest{}, fmt.Errorf("decide accreditation: %w", err)
	}

	log.Info("accreditation decided",
		slog.String("request_id", req.ID),
		slog.String("decision", string(decision)),
		slog.String("approver_id", actor.ID),
	)
	s.Metrics.Workflow("decide_accreditation", strings.ToLower(string(decision)))

	if mail != nil {
		deliver(ctx, s.Mailer, *mail)
	}
	return req, nil
}

// approve moves the requester forward according to its current status and
// grants the requested role. A completion email is returned when the
// identity still needs to set its first password.
func (s *AccreditationService) approve(
	ctx context.Context,
	tx store.Tx,
	req domain.AccreditationRequest,
) (*domain.Email, error) {
	reg := s.Registry.In(tx)

	ident, err := reg.Get(ctx, req.RequesterIdentityID)
	if err != nil {
		return nil, err
	}

	var mail *domain.Email
	switch ident.Status {
	case domain.StatusDraft, domain.StatusPendingApproval:
		if err := reg.ReviewerApprove(ctx, ident.ID); err != nil {
			return nil, err
		}
		issued, err := s.Vault.In(tx).Issue(ctx, ident.ID, domain.PurposeRegistrationCompletion, s.completionTTL())
		if err != nil {
			return nil, err
		}
		mail = &domain.Email{
			To:       ident.Email,
			Template: domain.TemplateCompleteRegistration,
			Link:     tokenLink(s.Links, domain.PurposeRegistrationCompletion, issued.Value),
		}
	case domain.StatusDisabled:
		if err := reg.Enable(ctx, ident.ID); err != nil {
			return nil, err
		}
	case domain.StatusActive, domain.StatusApprovedPendingRegistration, domain.StatusPendingVerification:
		// Already progressing on its own; only the role changes.
	default:
		return nil, &IllegalStateError{ID: ident.ID, From: ident.Status, Event: "reviewer_approve"}
	}

	if err := reg.GrantRole(ctx, ident.ID, req.RequestedRoleCode); err != nil {
		return nil, err
	}
	return mail, nil
}

// reject closes out an identity that exists only because of this
// application; established identities keep their status. An identity with
// other requests still Pending stays open so those can be approved.
func (s *AccreditationService) reject(
	ctx context.Context,
	tx store.Tx,
	req domain.AccreditationRequest,
) (*domain.Email, error) {
	reg := s.Registry.In(tx)

	ident, err := reg.Get(ctx, req.RequesterIdentityID)
	if err != nil {
		return nil, err
	}
	if ident.Status == domain.StatusPendingApproval {
		open, err := tx.Accreditations().CountPendingForRequester(ctx, ident.ID)
		if err != nil {
			return nil, fmt.Errorf("count pending requests: %w", err)
		}
		if open > 0 {
			return &domain.Email{To: ident.Email, Template: domain.TemplateAccreditationRefused}, nil
		}
		if err := reg.ReviewerReject(ctx, ident.ID); err != nil {
			return nil, err
		}
	}
	return &domain.Email{To: ident.Email, Template: domain.TemplateAccreditationRefused}, nil
}

// Get returns one request to a reviewer.
func (s *AccreditationService) Get(ctx context.Context, actor domain.Actor, id string) (domain.AccreditationRequest, error) {
	if !actor.HasScope(domain.ScopeAccreditationReview) {
		return domain.AccreditationRequest{}, ErrForbidden
	}
	req, err := s.Store.Accreditations().GetRequestByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.AccreditationRequest{}, ErrNotFound
	}
	if err != nil {
		return domain.AccreditationRequest{}, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

// ListPending returns the review queue, oldest first.
func (s *AccreditationService) ListPending(
	ctx context.Context,
	actor domain.Actor,
	limit int,
) ([]domain.AccreditationRequest, error) {
	if !actor.HasScope(domain.ScopeAccreditationReview) {
		return nil, ErrForbidden
	}
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	limit = min(limit, MaxPendingLimit)

	reqs, err := s.Store.Accreditations().ListPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return reqs, nil
}

func (s *AccreditationService) requireRole(ctx context.Context, st store.Store, code string) error {
	_, err := st.Roles().GetRoleByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnknownRole
	}
	if err != nil {
		return fmt.Errorf("get role: %w", err)
	}
	return nil
}

func (s *AccreditationService) createRequest(
	ctx context.Context,
	st store.Store,
	requesterID, roleCode string,
) (domain.AccreditationRequest, error) {
	now := s.Clock.Now()
	req := domain.AccreditationRequest{
		ID:                  idx.NewAt(now).String(),
		RequesterIdentityID: requesterID,
		RequestedRoleCode:   roleCode,
		Status:              domain.RequestPending,
		CreatedAt:           now,
	}
	if err := st.Accreditations().CreateRequest(ctx, req); err != nil {
		return domain.AccreditationRequest{}, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (s *AccreditationService) completionTTL() time.Duration {
	if s.CompletionTTL > 0 {
		return s.CompletionTTL
	}
	return DefaultCompletionTTL
}
