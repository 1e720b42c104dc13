package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/aussiebroadwan/portalid/internal/identity/obs"
	"github.com/aussiebroadwan/portalid/internal/identity/store"
	"github.com/aussiebroadwan/portalid/pkg/slogx"
)

// AdminService exposes operator actions on identities.
type AdminService struct {
	Store    store.Store
	Registry *Registry
	Sessions SessionInvalidator
	Metrics  *obs.Metrics
}

// Disable moves an Active identity to Disabled and ends its sessions.
func (s *AdminService) Disable(ctx context.Context, actor domain.Actor, id string) error {
	log := slogx.FromContext(ctx)

	if !actor.HasScope(domain.ScopeIdentityAdmin) {
		return ErrForbidden
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.Registry.In(tx).Disable(ctx, id); err != nil {
			return err
		}
		if s.Sessions == nil {
			return nil
		}
		return s.Sessions.InvalidateAll(ctx, id)
	})
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrIllegalState):
		log.Warn("disable refused", slog.String("identity_id", id), slog.Any("error", err))
		s.Metrics.Workflow("disable_identity", "conflict")
		return err
	case err != nil:
		log.Error("disable failed", slog.Any("error", err))
		return fmt.Errorf("disable identity: %w", err)
	}

	log.Info("identity disabled", slog.String("identity_id", id), slog.String("actor_id", actor.ID))
	s.Metrics.Workflow("disable_identity", "ok")
	return nil
}

// Get returns an identity with its roles.
func (s *AdminService) Get(ctx context.Context, actor domain.Actor, id string) (domain.Identity, error) {
	if !actor.HasScope(domain.ScopeIdentityAdmin) && !actor.HasScope(domain.ScopeAccreditationReview) {
		return domain.Identity{}, ErrForbidden
	}
	return s.Registry.Get(ctx, id)
}
