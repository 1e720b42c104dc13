package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ident, err := h.registry.Create(ctx, "limit@example.com", "")
	require.NoError(t, err)

	key := RateKey{Email: "Limit@Example.com", Purpose: domain.PurposePasswordReset}
	for i := range 5 {
		throttled, err := h.limiter.ShouldThrottle(ctx, key, time.Hour, 5)
		require.NoError(t, err)
		require.False(t, throttled, "call %d", i+1)

		_, err = h.vault.Issue(ctx, ident.ID, domain.PurposePasswordReset, time.Hour)
		require.NoError(t, err)
		h.clock.Advance(10 * time.Minute)
	}

	throttled, err := h.limiter.ShouldThrottle(ctx, key, time.Hour, 5)
	require.NoError(t, err)
	require.True(t, throttled)

	// Other purposes have their own stream.
	throttled, err = h.limiter.ShouldThrottle(ctx,
		RateKey{Email: key.Email, Purpose: domain.PurposeEmailVerification}, time.Hour, 5)
	require.NoError(t, err)
	require.False(t, throttled)

	// Older issuances slide out of the window.
	h.clock.Advance(20*time.Minute + time.Second)
	throttled, err = h.limiter.ShouldThrottle(ctx, key, time.Hour, 5)
	require.NoError(t, err)
	require.False(t, throttled)
}

func TestRateLimiterUnknownAddress(t *testing.T) {
	h := newHarness(t)

	throttled, err := h.limiter.ShouldThrottle(context.Background(),
		RateKey{Email: "ghost@example.com", Purpose: domain.PurposePasswordReset}, time.Hour, 5)
	require.NoError(t, err)
	require.False(t, throttled)

	throttled, err = h.limiter.ShouldThrottle(context.Background(),
		RateKey{Email: "ghost@example.com", Purpose: domain.PurposePasswordReset}, time.Hour, 0)
	require.NoError(t, err)
	require.False(t, throttled, "non-positive max disables the limiter")
}
