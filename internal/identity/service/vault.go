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
	"github.com/aussiebroadwan/portalid/pkg/cryptox"
	"github.com/aussiebroadwan/portalid/pkg/idx"
	"github.com/aussiebroadwan/portalid/pkg/slogx"
)

// TokenVault issues and consumes single-use, purpose-bound tokens. Only
// fingerprints are persisted.
type TokenVault struct {
	Store   store.Store
	Clock   Clock
	Metrics *obs.Metrics
}

// In returns a vault that reads and writes through st, typically a Tx.
func (v *TokenVault) In(st store.Store) *TokenVault {
	return &TokenVault{Store: st, Clock: v.Clock, Metrics: v.Metrics}
}

// Issue mints a token for subjectID. The raw value is returned exactly once.
func (v *TokenVault) Issue(
	ctx context.Context,
	subjectID string,
	purpose domain.Purpose,
	ttl time.Duration,
) (domain.IssuedToken, error) {
	if !purpose.Valid() {
		return domain.IssuedToken{}, fmt.Errorf("issue token: unknown purpose %q", purpose)
	}
	if ttl <= 0 {
		return domain.IssuedToken{}, fmt.Errorf("issue token: non-positive ttl %s", ttl)
	}

	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.IssuedToken{}, err
	}

	now := v.Clock.Now()
	tok := domain.Token{
		ID:                idx.NewAt(now).String(),
		TokenHash:         cryptox.FingerprintToken(raw),
		Purpose:           purpose,
		SubjectIdentityID: subjectID,
		IssuedAt:          now,
		ExpiresAt:         now.Add(ttl),
	}
	if err := v.Store.Tokens().CreateToken(ctx, tok); err != nil {
		return domain.IssuedToken{}, fmt.Errorf("store token: %w", err)
	}

	v.Metrics.TokenIssued(string(purpose))
	slogx.FromContext(ctx).Debug("token issued",
		slog.String("token_id", tok.ID),
		slog.String("token_purpose", string(purpose)),
		slog.String("identity_id", subjectID),
	)

	return domain.IssuedToken{Token: tok, Value: raw}, nil
}

// Consume atomically marks the token used and returns its subject. At most
// one concurrent caller succeeds for a given value. Failures are *TokenError.
func (v *TokenVault) Consume(ctx context.Context, value string, purpose domain.Purpose) (string, error) {
	if value == "" {
		v.Metrics.TokenConsumed(string(purpose), string(TokenNotFound))
		return "", &TokenError{Kind: TokenNotFound, Purpose: purpose}
	}

	hash := cryptox.FingerprintToken(value)
	now := v.Clock.Now()

	subject, err := v.Store.Tokens().ConsumeToken(ctx, hash, purpose, now)
	if err == nil {
		v.Metrics.TokenConsumed(string(purpose), "ok")
		return subject, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("consume token: %w", err)
	}

	kind, err := v.classify(ctx, hash, purpose, now)
	if err != nil {
		return "", err
	}
	v.Metrics.TokenConsumed(string(purpose), string(kind))
	return "", &TokenError{Kind: kind, Purpose: purpose}
}

// classify explains why a conditional consume touched no row. A token of a
// different purpose is reported as not found.
func (v *TokenVault) classify(
	ctx context.Context,
	hash string,
	purpose domain.Purpose,
	now time.Time,
) (TokenFailure, error) {
	tok, err := v.Store.Tokens().GetTokenByHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return TokenNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("classify token: %w", err)
	}

	switch {
	case tok.Purpose != purpose:
		return TokenNotFound, nil
	case tok.UsedAt != nil:
		return TokenAlreadyUsed, nil
	case tok.IsExpired(now):
		return TokenExpired, nil
	}
	// Raced with a concurrent consumer between the update and this read.
	return TokenAlreadyUsed, nil
}
