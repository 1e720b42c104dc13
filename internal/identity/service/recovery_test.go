package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/stretchr/testify/require"
)

func TestRequestResetDoesNotRevealAccounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Unknown address.
	require.NoError(t, h.recovery.RequestReset(ctx, "nobody@example.com"))
	require.Zero(t, h.emailsTo("nobody@example.com"))

	// Registered but never verified.
	_, err := h.registration.Register(ctx, "pending@example.com", goodPassword)
	require.NoError(t, err)
	require.NoError(t, h.recovery.RequestReset(ctx, "pending@example.com"))
	require.Equal(t, 1, h.emailsTo("pending@example.com"), "only the verification email")

	// Disabled.
	id := h.activeIdentity(t, "gone@example.com")
	require.NoError(t, h.admin.Disable(ctx, operator, id))
	before := h.emailsTo("gone@example.com")
	require.NoError(t, h.recovery.RequestReset(ctx, "gone@example.com"))
	require.Equal(t, before, h.emailsTo("gone@example.com"))
}

func TestRequestResetThrottlesPerAddress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.activeIdentity(t, "busy@example.com")

	resets := func() int {
		n := 0
		for _, e := range h.mail.Sent() {
			if e.To == "busy@example.com" && e.Template == domain.TemplatePasswordReset {
				n++
			}
		}
		return n
	}

	for i := 1; i <= DefaultResetMaxRequests; i++ {
		require.NoError(t, h.recovery.RequestReset(ctx, "busy@example.com"))
		require.Equal(t, i, resets())
		h.clock.Advance(time.Minute)
	}

	require.NoError(t, h.recovery.RequestReset(ctx, "Busy@Example.com"))
	require.Equal(t, DefaultResetMaxRequests, resets())

	// The first issuance leaves the window.
	h.clock.Advance(DefaultResetWindow - time.Duration(DefaultResetMaxRequests)*time.Minute + time.Second)
	require.NoError(t, h.recovery.RequestReset(ctx, "busy@example.com"))
	require.Equal(t, DefaultResetMaxRequests+1, resets())
}

func TestConfirmReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.activeIdentity(t, "reset@example.com")

	require.NoError(t, h.recovery.RequestReset(ctx, "reset@example.com"))
	tok := h.mail.Last(t)
	require.Equal(t, domain.TemplatePasswordReset, tok.Template)

	err := h.recovery.ConfirmReset(ctx, tok.Link, "short")
	require.ErrorIs(t, err, ErrWeakPassword)
	var pe *PolicyError
	require.ErrorAs(t, err, &pe)

	const fresh = "a much longer passphrase"
	require.NoError(t, h.recovery.ConfirmReset(ctx, tok.Link, fresh))

	got, err := h.registry.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "plain$"+fresh, got.CredentialHash)
	require.Equal(t, domain.StatusActive, got.Status)
	require.Equal(t, []string{id}, h.sessions.IDs())

	require.ErrorIs(t, h.recovery.ConfirmReset(ctx, tok.Link, goodPassword), ErrResetFailed)
}

func TestConfirmResetTokenFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.registration.Register(ctx, "mixed@example.com", goodPassword)
	require.NoError(t, err)
	verification := h.mail.Last(t).Link

	require.ErrorIs(t, h.recovery.ConfirmReset(ctx, "", goodPassword), ErrResetFailed)
	require.ErrorIs(t, h.recovery.ConfirmReset(ctx, "unknown-token", goodPassword), ErrResetFailed)
	require.ErrorIs(t, h.recovery.ConfirmReset(ctx, verification, goodPassword), ErrResetFailed,
		"a verification token is not a reset token")

	// Still usable for its own purpose.
	require.NoError(t, h.registration.VerifyEmail(ctx, verification))

	require.NoError(t, h.recovery.RequestReset(ctx, "mixed@example.com"))
	reset := h.mail.Last(t).Link
	h.clock.Advance(DefaultResetTTL + time.Second)
	require.ErrorIs(t, h.recovery.ConfirmReset(ctx, reset, goodPassword), ErrResetFailed)
	require.Empty(t, h.sessions.IDs())
}

func TestConfirmResetForDisabledIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.activeIdentity(t, "late@example.com")

	require.NoError(t, h.recovery.RequestReset(ctx, "late@example.com"))
	reset := h.mail.Last(t).Link
	require.NoError(t, h.admin.Disable(ctx, operator, id))

	require.ErrorIs(t, h.recovery.ConfirmReset(ctx, reset, "another long passphrase"), ErrResetFailed)
	require.Equal(t, domain.StatusDisabled, h.status(t, id))
}

func TestConfirmResetRollsBackWhenSessionsCannotBeEnded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.activeIdentity(t, "sticky@example.com")

	require.NoError(t, h.recovery.RequestReset(ctx, "sticky@example.com"))
	reset := h.mail.Last(t).Link

	h.sessions.fail = true
	err := h.recovery.ConfirmReset(ctx, reset, "another long passphrase")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrResetFailed)

	got, err := h.registry.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "plain$"+goodPassword, got.CredentialHash)

	h.sessions.fail = false
	require.NoError(t, h.recovery.ConfirmReset(ctx, reset, "another long passphrase"))
	require.Equal(t, []string{id}, h.sessions.IDs())
}
