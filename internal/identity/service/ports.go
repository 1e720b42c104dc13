package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
)

// CredentialHasher turns a raw password into an opaque stored hash.
type CredentialHasher interface {
	Hash(raw string) (string, error)
	Verify(raw, hash string) bool
}

// EmailDispatcher requests delivery of a notification. Workflows call it
// after commit and only log its errors.
type EmailDispatcher interface {
	Send(ctx context.Context, e domain.Email) error
}

// SessionInvalidator terminates every active session of an identity.
type SessionInvalidator interface {
	InvalidateAll(ctx context.Context, identityID string) error
}

// PasswordPolicy returns the rules raw violates; empty means acceptable.
type PasswordPolicy interface {
	Check(raw string) []string
}

// Clock is the time source for issuance, expiry and audit timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// LinkBuilder renders the URL a token is delivered in.
type LinkBuilder func(purpose domain.Purpose, token string) string
