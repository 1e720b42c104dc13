package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/aussiebroadwan/portalid/pkg/slogx"
)

const maxEmailLength = 254

// normalizeAndValidateEmail returns the canonical form of a bare address
// ("user@host"), rejecting display names and obviously malformed input.
func normalizeAndValidateEmail(raw string) (string, error) {
	email := domain.NormalizeEmail(raw)
	if email == "" || len(email) > maxEmailLength {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return "", ErrInvalidEmail
	}
	at := strings.LastIndexByte(email, '@')
	if at < 1 || !strings.Contains(email[at+1:], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func checkPolicy(p PasswordPolicy, raw string) error {
	if p == nil {
		return nil
	}
	if v := p.Check(raw); len(v) > 0 {
		return &PolicyError{Violations: v}
	}
	return nil
}

// deliver hands e to the dispatcher after the workflow has committed.
// Failures are logged and swallowed; the workflow outcome stands.
func deliver(ctx context.Context, d EmailDispatcher, e domain.Email) {
	if d == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := d.Send(ctx, e); err != nil {
		slogx.FromContext(ctx).Error("email dispatch failed",
			slog.String("template", string(e.Template)),
			slog.Any("error", err),
		)
	}
}

func tokenLink(links LinkBuilder, purpose domain.Purpose, value string) string {
	if links == nil {
		return value
	}
	return links(purpose, value)
}

// DefaultLinks builds "<base>/<path>?token=<value>" links.
func DefaultLinks(baseURL string) LinkBuilder {
	base := strings.TrimRight(baseURL, "/")
	return func(purpose domain.Purpose, value string) string {
		var path string
		switch purpose {
		case domain.PurposeEmailVerification:
			path = "/verify-email"
		case domain.PurposePasswordReset:
			path = "/reset-password"
		case domain.PurposeRegistrationCompletion:
			path = "/complete-registration"
		}
		return fmt.Sprintf("%s%s?token=%s", base, path, value)
	}
}
