package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/aussiebroadwan/portalid/internal/identity/obs"
	"github.com/aussiebroadwan/portalid/internal/identity/store"
	"github.com/aussiebroadwan/portalid/pkg/slogx"
)

const (
	DefaultResetTTL         = time.Hour
	DefaultResetWindow      = 60 * time.Minute
	DefaultResetMaxRequests = 5
)

// RecoveryService implements forgot-password and reset.
type RecoveryService struct {
	Store    store.Store
	Registry *Registry
	Vault    *TokenVault
	Limiter  *RateLimiter
	Hasher   CredentialHasher
	Policy   PasswordPolicy
	Mailer   EmailDispatcher
	Sessions SessionInvalidator
	Links    LinkBuilder
	Metrics  *obs.Metrics

	ResetTTL    time.Duration
	Window      time.Duration
	MaxRequests int
}

// RequestReset mails a reset link to an Active identity holding email. The
// caller sees nil whether the address is unknown, ineligible, throttled or
// served; only infrastructure failures are returned.
func (s *RecoveryService) RequestReset(ctx context.Context, email string) error {
	log := slogx.FromContext(ctx)
	addr := domain.NormalizeEmail(email)

	var (
		outcome = "issued"
		issued  domain.IssuedToken
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		throttled, err := s.Limiter.In(tx).ShouldThrottle(ctx,
			RateKey{Email: addr, Purpose: domain.PurposePasswordReset},
			s.window(), s.maxRequests())
		if err != nil {
			return err
		}
		if throttled {
			outcome = "throttled"
			return nil
		}

		ident, err := s.Registry.In(tx).FindByEmail(ctx, addr)
		if errors.Is(err, ErrNotFound) {
			outcome = "unknown"
			return nil
		}
		if err != nil {
			return err
		}
		if ident.Status != domain.StatusActive {
			outcome = "ineligible"
			return nil
		}

		issued, err = s.Vault.In(tx).Issue(ctx, ident.ID, domain.PurposePasswordReset, s.resetTTL())
		return err
	})
	if err != nil {
		log.Error("password reset request failed", slog.Any("error", err))
		return fmt.Errorf("request reset: %w", err)
	}

	s.Metrics.Workflow("request_reset", outcome)
	if outcome == "throttled" {
		s.Metrics.Throttled(string(domain.PurposePasswordReset))
	}
	log.Info("password reset requested", slog.String("outcome", outcome))

	if issued.Value != "" {
		deliver(ctx, s.Mailer, domain.Email{
			To:       addr,
			Template: domain.TemplatePasswordReset,
			Link:     tokenLink(s.Links, domain.PurposePasswordReset, issued.Value),
		})
	}
	return nil
}

// ConfirmReset sets a new password using a PasswordReset token and ends
// every session of the identity. A policy failure is returned as
// *PolicyError; every token problem collapses to ErrResetFailed.
func (s *RecoveryService) ConfirmReset(ctx context.Context, value, newRawCredential string) error {
	log := slogx.FromContext(ctx)

	if err := checkPolicy(s.Policy, newRawCredential); err != nil {
		s.Metrics.Workflow("confirm_reset", "weak_password")
		return err
	}
	hash, err := s.Hasher.Hash(newRawCredential)
	if err != nil {
		return fmt.Errorf("hash credential: %w", err)
	}

	var subject string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		subject, err = s.Vault.In(tx).Consume(ctx, value, domain.PurposePasswordReset)
		if err != nil {
			return err
		}
		if err := s.Registry.In(tx).SetPassword(ctx, subject, hash); err != nil {
			return err
		}
		if s.Sessions == nil {
			return nil
		}
		return s.Sessions.InvalidateAll(ctx, subject)
	})

	var (
		te  *TokenError
		ise *IllegalStateError
	)
	switch {
	case errors.As(err, &te):
		log.Warn("password reset rejected", slog.String("token_kind", string(te.Kind)))
		s.Metrics.Workflow("confirm_reset", "failed")
		return ErrResetFailed
	case errors.As(err, &ise):
		log.Warn("password reset for identity that no longer accepts passwords",
			slog.String("identity_id", ise.ID), slog.String("status", string(ise.From)))
		s.Metrics.Workflow("confirm_reset", "failed")
		return ErrResetFailed
	case err != nil:
		log.Error("password reset failed", slog.Any("error", err))
		return fmt.Errorf("confirm reset: %w", err)
	}

	log.Info("password reset", slog.String("identity_id", subject))
	s.Metrics.Workflow("confirm_reset", "ok")
	return nil
}

func (s *RecoveryService) resetTTL() time.Duration {
	if s.ResetTTL > 0 {
		return s.ResetTTL
	}
	return DefaultResetTTL
}

func (s *RecoveryService) window() time.Duration {
	if s.Window > 0 {
		return s.Window
	}
	return DefaultResetWindow
}

func (s *RecoveryService) maxRequests() int {
	if s.MaxRequests > 0 {
		return s.MaxRequests
	}
	return DefaultResetMaxRequests
}
