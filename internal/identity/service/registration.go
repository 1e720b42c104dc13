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
	DefaultVerificationTTL = 24 * time.Hour
	DefaultResendWindow    = 60 * time.Minute
	DefaultResendMax       = 5
)

// RegistrationService drives self-registration: register, verify the email
// address, and (after accreditation approval) complete registration.
type RegistrationService struct {
	Store    store.Store
	Registry *Registry
	Vault    *TokenVault
	Limiter  *RateLimiter
	Hasher   CredentialHasher
	Policy   PasswordPolicy
	Mailer   EmailDispatcher
	Links    LinkBuilder
	Metrics  *obs.Metrics

	VerificationTTL time.Duration
	ResendWindow    time.Duration
	ResendMax       int
}

// Register creates a PendingVerification identity and mails a verification
// link. Delivery failure does not fail registration.
func (s *RegistrationService) Register(ctx context.Context, email, rawCredential string) (domain.Identity, error) {
	log := slogx.FromContext(ctx)

	addr, err := normalizeAndValidateEmail(email)
	if err != nil {
		s.Metrics.Workflow("register", "invalid")
		return domain.Identity{}, err
	}
	if err := checkPolicy(s.Policy, rawCredential); err != nil {
		s.Metrics.Workflow("register", "weak_password")
		return domain.Identity{}, err
	}

	// Hash before opening the write transaction.
	hash, err := s.Hasher.Hash(rawCredential)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("hash credential: %w", err)
	}

	var (
		ident  domain.Identity
		issued domain.IssuedToken
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		reg := s.Registry.In(tx)

		created, err := reg.Create(ctx, addr, hash)
		if err != nil {
			return err
		}
		if err := reg.Submit(ctx, created.ID); err != nil {
			return err
		}
		issued, err = s.Vault.In(tx).Issue(ctx, created.ID, domain.PurposeEmailVerification, s.verificationTTL())
		if err != nil {
			return err
		}
		ident, err = reg.Get(ctx, created.ID)
		return err
	})
	if errors.Is(err, ErrDuplicateEmail) {
		log.Warn("registration for existing email")
		s.Metrics.Workflow("register", "duplicate")
		return domain.Identity{}, err
	}
	if err != nil {
		log.Error("registration failed", slog.Any("error", err))
		return domain.Identity{}, fmt.Errorf("register: %w", err)
	}

	log.Info("identity registered", slog.String("identity_id", ident.ID))
	s.Metrics.Workflow("register", "ok")

	deliver(ctx, s.Mailer, domain.Email{
		To:       ident.Email,
		Template: domain.TemplateVerifyEmail,
		Link:     tokenLink(s.Links, domain.PurposeEmailVerification, issued.Value),
	})
	return ident, nil
}

// VerifyEmail consumes an EmailVerification token and activates its
// subject. An identity that is already Active is treated as success.
func (s *RegistrationService) VerifyEmail(ctx context.Context, value string) error {
	log := slogx.FromContext(ctx)

	var subject string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		subject, err = s.Vault.In(tx).Consume(ctx, value, domain.PurposeEmailVerification)
		if err != nil {
			return err
		}

		err = s.Registry.In(tx).VerifyEmail(ctx, subject)
		var ise *IllegalStateError
		if errors.As(err, &ise) && ise.From == domain.StatusActive {
			return nil
		}
		return err
	})

	var (
		te  *TokenError
		ise *IllegalStateError
	)
	switch {
	case errors.As(err, &te):
		log.Warn("email verification rejected", slog.String("token_kind", string(te.Kind)))
		s.Metrics.Workflow("verify_email", "invalid_token")
		return ErrInvalidToken
	case errors.As(err, &ise):
		log.Warn("email verification in wrong state",
			slog.String("identity_id", ise.ID), slog.String("status", string(ise.From)))
		s.Metrics.Workflow("verify_email", "invalid_token")
		return ErrInvalidToken
	case err != nil:
		log.Error("email verification failed", slog.Any("error", err))
		return fmt.Errorf("verify email: %w", err)
	}

	log.Info("email verified", slog.String("identity_id", subject))
	s.Metrics.Workflow("verify_email", "ok")
	return nil
}

// ResendVerification issues a fresh verification link when email belongs to
// an identity still awaiting verification. It returns nil for unknown or
// ineligible addresses and when throttled. Earlier links stay valid.
func (s *RegistrationService) ResendVerification(ctx context.Context, email string) error {
	log := slogx.FromContext(ctx)
	addr := domain.NormalizeEmail(email)

	var (
		outcome = "ok"
		issued  domain.IssuedToken
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		throttled, err := s.Limiter.In(tx).ShouldThrottle(ctx,
			RateKey{Email: addr, Purpose: domain.PurposeEmailVerification},
			s.resendWindow(), s.resendMax())
		if err != nil {
			return err
		}
		if throttled {
			outcome = "throttled"
			return nil
		}

		ident, err := s.Registry.In(tx).FindByEmail(ctx, addr)
		if errors.Is(err, ErrNotFound) {
			outcome = "ignored"
			return nil
		}
		if err != nil {
			return err
		}
		if ident.Status != domain.StatusPendingVerification {
			outcome = "ignored"
			return nil
		}

		issued, err = s.Vault.In(tx).Issue(ctx, ident.ID, domain.PurposeEmailVerification, s.verificationTTL())
		return err
	})
	if err != nil {
		log.Error("resend verification failed", slog.Any("error", err))
		return fmt.Errorf("resend verification: %w", err)
	}

	s.Metrics.Workflow("resend_verification", outcome)
	if outcome == "throttled" {
		s.Metrics.Throttled(string(domain.PurposeEmailVerification))
	}
	if issued.Value == "" {
		log.Debug("verification resend suppressed", slog.String("outcome", outcome))
		return nil
	}

	deliver(ctx, s.Mailer, domain.Email{
		To:       addr,
		Template: domain.TemplateVerifyEmail,
		Link:     tokenLink(s.Links, domain.PurposeEmailVerification, issued.Value),
	})
	return nil
}

// CompleteRegistration consumes a RegistrationCompletion token, sets the
// first password of an approved identity and activates it.
func (s *RegistrationService) CompleteRegistration(ctx context.Context, value, rawCredential string) error {
	log := slogx.FromContext(ctx)

	if err := checkPolicy(s.Policy, rawCredential); err != nil {
		s.Metrics.Workflow("complete_registration", "weak_password")
		return err
	}
	hash, err := s.Hasher.Hash(rawCredential)
	if err != nil {
		return fmt.Errorf("hash credential: %w", err)
	}

	var subject string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		subject, err = s.Vault.In(tx).Consume(ctx, value, domain.PurposeRegistrationCompletion)
		if err != nil {
			return err
		}
		reg := s.Registry.In(tx)
		if err := reg.SetPassword(ctx, subject, hash); err != nil {
			return err
		}
		return reg.CompleteRegistration(ctx, subject)
	})

	var (
		te  *TokenError
		ise *IllegalStateError
	)
	switch {
	case errors.As(err, &te):
		log.Warn("registration completion rejected", slog.String("token_kind", string(te.Kind)))
		s.Metrics.Workflow("complete_registration", "invalid_token")
		return ErrInvalidToken
	case errors.As(err, &ise):
		log.Warn("registration completion in wrong state",
			slog.String("identity_id", ise.ID), slog.String("status", string(ise.From)))
		s.Metrics.Workflow("complete_registration", "invalid_token")
		return ErrInvalidToken
	case err != nil:
		log.Error("registration completion failed", slog.Any("error", err))
		return fmt.Errorf("complete registration: %w", err)
	}

	log.Info("registration completed", slog.String("identity_id", subject))
	s.Metrics.Workflow("complete_registration", "ok")
	return nil
}

func (s *RegistrationService) verificationTTL() time.Duration {
	if s.VerificationTTL > 0 {
		return s.VerificationTTL
	}
	return DefaultVerificationTTL
}

func (s *RegistrationService) resendWindow() time.Duration {
	if s.ResendWindow > 0 {
		return s.ResendWindow
	}
	return DefaultResendWindow
}

func (s *RegistrationService) resendMax() int {
	if s.ResendMax > 0 {
		return s.ResendMax
	}
	return DefaultResendMax
}
