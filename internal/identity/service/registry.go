package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/aussiebroadwan/portalid/internal/identity/store"
	"github.com/aussiebroadwan/portalid/pkg/idx"
)

// lifecycleEvent is one edge of the identity state machine.
type lifecycleEvent struct {
	name string
	from []domain.Status
	to   domain.Status
}

var (
	evSubmit = lifecycleEvent{"submit",
		[]domain.Status{domain.StatusDraft}, domain.StatusPendingVerification}
	evSubmitForApproval = lifecycleEvent{"submit_for_approval",
		[]domain.Status{domain.StatusDraft}, domain.StatusPendingApproval}
	evVerifyEmail = lifecycleEvent{"verify_email",
		[]domain.Status{domain.StatusPendingVerification}, domain.StatusActive}
	evReviewerApprove = lifecycleEvent{"reviewer_approve",
		[]domain.Status{domain.StatusDraft, domain.StatusPendingApproval}, domain.StatusApprovedPendingRegistration}
	evReviewerReject = lifecycleEvent{"reviewer_reject",
		[]domain.Status{domain.StatusPendingApproval}, domain.StatusRejected}
	evCompleteRegistration = lifecycleEvent{"complete_registration",
		[]domain.Status{domain.StatusApprovedPendingRegistration}, domain.StatusActive}
	evDisable = lifecycleEvent{"disable",
		[]domain.Status{domain.StatusActive}, domain.StatusDisabled}
	evEnable = lifecycleEvent{"enable",
		[]domain.Status{domain.StatusDisabled}, domain.StatusActive}
)

// passwordSettable lists the statuses in which a credential may be (re)set.
var passwordSettable = []domain.Status{domain.StatusApprovedPendingRegistration, domain.StatusActive}

// Registry owns identity records and their lifecycle. Every transition is a
// conditional update on the current status, so a lost race surfaces as an
// IllegalStateError instead of a silent overwrite.
type Registry struct {
	Store store.Store
	Clock Clock
}

func (r *Registry) In(st store.Store) *Registry {
	return &Registry{Store: st, Clock: r.Clock}
}

// Create inserts a Draft identity. email must already be normalised.
func (r *Registry) Create(ctx context.Context, email, credentialHash string) (domain.Identity, error) {
	now := r.Clock.Now()
	i := domain.Identity{
		ID:             idx.NewAt(now).String(),
		Email:          email,
		CredentialHash: credentialHash,
		Status:         domain.StatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.Store.Identities().CreateIdentity(ctx, i); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Identity{}, ErrDuplicateEmail
		}
		return domain.Identity{}, fmt.Errorf("create identity: %w", err)
	}
	return i, nil
}

func (r *Registry) Get(ctx context.Context, id string) (domain.Identity, error) {
	i, err := r.Store.Identities().GetIdentityByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Identity{}, ErrNotFound
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("get identity: %w", err)
	}
	return i, nil
}

// FindByEmail matches case-insensitively among non-Rejected identities.
func (r *Registry) FindByEmail(ctx context.Context, email string) (domain.Identity, error) {
	i, err := r.Store.Identities().GetIdentityByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Identity{}, ErrNotFound
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("find identity: %w", err)
	}
	return i, nil
}

func (r *Registry) Submit(ctx context.Context, id string) error {
	return r.apply(ctx, id, evSubmit)
}

func (r *Registry) SubmitForApproval(ctx context.Context, id string) error {
	return r.apply(ctx, id, evSubmitForApproval)
}

func (r *Registry) VerifyEmail(ctx context.Context, id string) error {
	return r.apply(ctx, id, evVerifyEmail)
}

func (r *Registry) ReviewerApprove(ctx context.Context, id string) error {
	return r.apply(ctx, id, evReviewerApprove)
}

func (r *Registry) ReviewerReject(ctx context.Context, id string) error {
	return r.apply(ctx, id, evReviewerReject)
}

func (r *Registry) CompleteRegistration(ctx context.Context, id string) error {
	return r.apply(ctx, id, evCompleteRegistration)
}

func (r *Registry) Disable(ctx context.Context, id string) error {
	return r.apply(ctx, id, evDisable)
}

func (r *Registry) Enable(ctx context.Context, id string) error {
	return r.apply(ctx, id, evEnable)
}

// SetPassword stores a new credential hash. Only ApprovedPendingRegistration
// and Active identities accept one.
func (r *Registry) SetPassword(ctx context.Context, id, credentialHash string) error {
	ok, err := r.Store.Identities().UpdateCredentialHash(ctx, id, passwordSettable, credentialHash, r.Clock.Now())
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if ok {
		return nil
	}
	return r.rejection(ctx, id, "set_password")
}

// GrantRole is idempotent.
func (r *Registry) GrantRole(ctx context.Context, id, roleCode string) error {
	if err := r.Store.Identities().GrantRole(ctx, id, roleCode, r.Clock.Now()); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

func (r *Registry) Roles(ctx context.Context, id string) ([]string, error) {
	codes, err := r.Store.Identities().ListRoleCodes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return codes, nil
}

func (r *Registry) apply(ctx context.Context, id string, ev lifecycleEvent) error {
	ok, err := r.Store.Identities().TransitionStatus(ctx, id, ev.from, ev.to, r.Clock.Now())
	if err != nil {
		return fmt.Errorf("%s: %w", ev.name, err)
	}
	if ok {
		return nil
	}
	return r.rejection(ctx, id, ev.name)
}

// rejection builds the error for an update that matched no row: either the
// identity is missing or its status forbids the event.
func (r *Registry) rejection(ctx context.Context, id, event string) error {
	cur, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return &IllegalStateError{ID: id, From: cur.Status, Event: event}
}
