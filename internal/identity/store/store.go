package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this.
// Sub-repositories are reached through methods so a Tx-scoped Store can hand
// out the same repositories bound to the transaction.
type Store interface {
	Identities() Identities
	Tokens() Tokens
	Accreditations() Accreditations
	Roles() Roles

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Identities interface {
	// CreateIdentity inserts a new identity. Returns ErrAlreadyExists when a
	// non-Rejected identity already holds the email.
	CreateIdentity(ctx context.Context, i domain.Identity) error

	// GetIdentityByID returns the identity with its granted role codes.
	GetIdentityByID(ctx context.Context, id string) (domain.Identity, error)

	// GetIdentityByEmail matches case-insensitively and ignores Rejected
	// identities.
	GetIdentityByEmail(ctx context.Context, email string) (domain.Identity, error)

	// TransitionStatus moves id to `to` only if its current status is one of
	// from. Reports whether a row changed.
	TransitionStatus(ctx context.Context, id string, from []domain.Status, to domain.Status, at time.Time) (bool, error)

	// UpdateCredentialHash sets the hash only while the status is one of
	// allowed. Reports whether a row changed.
	UpdateCredentialHash(ctx context.Context, id string, allowed []domain.Status, hash string, at time.Time) (bool, error)

	// GrantRole is idempotent.
	GrantRole(ctx context.Context, id, roleCode string, at time.Time) error

	// ListRoleCodes returns the codes granted to id, ordered by code.
	ListRoleCodes(ctx context.Context, id string) ([]string, error)
}

type Tokens interface {
	// CreateToken stores a freshly issued token by fingerprint.
	CreateToken(ctx context.Context, t domain.Token) error

	// ConsumeToken marks the token used iff it matches hash and purpose, is
	// unused, and is not expired at now. Returns the subject identity id, or
	// ErrNotFound when no row qualified.
	ConsumeToken(ctx context.Context, hash string, purpose domain.Purpose, now time.Time) (string, error)

	// GetTokenByHash is used to classify a failed consumption.
	GetTokenByHash(ctx context.Context, hash string) (domain.Token, error)

	// CountIssuedForEmail counts tokens of purpose issued in [since, until]
	// to identities holding email.
	CountIssuedForEmail(ctx context.Context, email string, purpose domain.Purpose, since, until time.Time) (int, error)

	// DeleteTokensExpiredBefore is housekeeping.
	DeleteTokensExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Accreditations interface {
	CreateRequest(ctx context.Context, r domain.AccreditationRequest) error

	GetRequestByID(ctx context.Context, id string) (domain.AccreditationRequest, error)

	// DecidePending records a decision only if the request is still Pending.
	// Reports whether a row changed.
	DecidePending(ctx context.Context, id string, status domain.RequestStatus, approverID string, note *string, at time.Time) (bool, error)

	// ListPending returns pending requests, oldest first.
	ListPending(ctx context.Context, limit int) ([]domain.AccreditationRequest, error)

	// CountPendingForRequester counts the identity's requests still Pending.
	CountPendingForRequester(ctx context.Context, identityID string) (int, error)

	// CountPendingCreatedBefore counts pending requests older than cutoff.
	CountPendingCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type Roles interface {
	GetRoleByCode(ctx context.Context, code string) (domain.Role, error)
	ListAll(ctx context.Context) ([]domain.Role, error)
}
