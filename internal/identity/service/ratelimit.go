package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/aussiebroadwan/portalid/internal/identity/store"
)

// RateKey identifies an issuance stream: one address, one purpose.
type RateKey struct {
	Email   string
	Purpose domain.Purpose
}

// RateLimiter bounds token issuance per RateKey over a trailing window by
// counting persisted tokens. Addresses with no identity run the same query
// and simply count zero.
type RateLimiter struct {
	Store store.Store
	Clock Clock
}

func (l *RateLimiter) In(st store.Store) *RateLimiter {
	return &RateLimiter{Store: st, Clock: l.Clock}
}

// ShouldThrottle reports whether key has already reached maxRequests
// issuance events within [now-window, now].
func (l *RateLimiter) ShouldThrottle(
	ctx context.Context,
	key RateKey,
	window time.Duration,
	maxRequests int,
) (bool, error) {
	if maxRequests <= 0 {
		return false, nil
	}

	now := l.Clock.Now()
	n, err := l.Store.Tokens().CountIssuedForEmail(ctx,
		domain.NormalizeEmail(key.Email), key.Purpose, now.Add(-window), now)
	if err != nil {
		return false, fmt.Errorf("count issued tokens: %w", err)
	}
	return n >= maxRequests, nil
}
