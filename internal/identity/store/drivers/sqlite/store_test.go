package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/aussiebroadwan/portalid/internal/identity/store"
	"github.com/aussiebroadwan/portalid/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/portalid/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "identity.db")))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func createIdentity(t *testing.T, st store.Store, email string, status domain.Status) domain.Identity {
	t.Helper()
	i := domain.Identity{
		ID:        idx.New().String(),
		Email:     email,
		Status:    status,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
	require.NoError(t, st.Identities().CreateIdentity(context.Background(), i))
	return i
}

func TestMigrationsSeedRoles(t *testing.T) {
	st := newStore(t)

	roles, err := st.Roles().ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 3)

	role, err := st.Roles().GetRoleByCode(context.Background(), domain.RoleProfessional)
	require.NoError(t, err)
	require.Contains(t, role.Scopes, "portal:access")

	_, err = st.Roles().GetRoleByCode(context.Background(), "NOPE")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Applying again is a no-op.
	require.NoError(t, st.ApplyMigrations())
}

func TestIdentityEmailUniqueness(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	first := createIdentity(t, st, "ada@example.com", domain.StatusPendingApproval)

	dup := domain.Identity{ID: idx.New().String(), Email: "ADA@example.com", Status: domain.StatusDraft, CreatedAt: t0, UpdatedAt: t0}
	require.ErrorIs(t, st.Identities().CreateIdentity(ctx, dup), store.ErrAlreadyExists)

	got, err := st.Identities().GetIdentityByEmail(ctx, "Ada@Example.com")
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)

	// Rejected identities release the address.
	ok, err := st.Identities().TransitionStatus(ctx, first.ID,
		[]domain.Status{domain.StatusPendingApproval}, domain.StatusRejected, t0)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = st.Identities().GetIdentityByEmail(ctx, "ada@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, st.Identities().CreateIdentity(ctx, dup))
}

func TestTransitionStatusIsConditional(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	i := createIdentity(t, st, "bob@example.com", domain.StatusDraft)

	ok, err := st.Identities().TransitionStatus(ctx, i.ID,
		[]domain.Status{domain.StatusActive}, domain.StatusDisabled, t0.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = st.Identities().TransitionStatus(ctx, i.ID,
		[]domain.Status{domain.StatusDraft, domain.StatusPendingApproval}, domain.StatusApprovedPendingRegistration, t0.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := st.Identities().GetIdentityByID(ctx, i.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusApprovedPendingRegistration, got.Status)
	require.Equal(t, t0.Add(time.Minute), got.UpdatedAt)
	require.Equal(t, t0, got.CreatedAt)
}

func TestGrantRoleIsIdempotent(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	i := createIdentity(t, st, "carol@example.com", domain.StatusActive)

	for range 3 {
		require.NoError(t, st.Identities().GrantRole(ctx, i.ID, domain.RoleProfessional, t0))
	}
	require.NoError(t, st.Identities().GrantRole(ctx, i.ID, domain.RoleExternalUser, t0))

	got, err := st.Identities().GetIdentityByID(ctx, i.ID)
	require.NoError(t, err)
	require.Equal(t, []string{domain.RoleExternalUser, domain.RoleProfessional}, got.Roles)
}

func TestForeignKeysOnEveryConnection(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	// Concurrent writers force the pool past a single connection.
	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for n := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[n] = st.Identities().GrantRole(ctx, idx.New().String(), domain.RoleProfessional, t0)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
	}
}

func TestCountPendingForRequester(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	a := createIdentity(t, st, "gil@example.com", domain.StatusPendingApproval)
	b := createIdentity(t, st, "hal@example.com", domain.StatusPendingApproval)

	var first string
	for _, r := range []struct{ who, role string }{
		{a.ID, domain.RoleProfessional},
		{a.ID, domain.RoleCompanyRepresentative},
		{b.ID, domain.RoleProfessional},
	} {
		req := domain.AccreditationRequest{
			ID:                  idx.New().String(),
			RequesterIdentityID: r.who,
			RequestedRoleCode:   r.role,
			Status:              domain.RequestPending,
			CreatedAt:           t0,
		}
		require.NoError(t, st.Accreditations().CreateRequest(ctx, req))
		if first == "" {
			first = req.ID
		}
	}

	n, err := st.Accreditations().CountPendingForRequester(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	ok, err := st.Accreditations().DecidePending(ctx, first, domain.RequestApproved, "rev-1", nil, t0.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	n, err = st.Accreditations().CountPendingForRequester(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = st.Accreditations().CountPendingForRequester(ctx, "nobody")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestConsumeToken(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	i := createIdentity(t, st, "dan@example.com", domain.StatusPendingVerification)

	tok := domain.Token{
		ID:                idx.New().String(),
		TokenHash:         "fp-1",
		Purpose:           domain.PurposeEmailVerification,
		SubjectIdentityID: i.ID,
		IssuedAt:          t0,
		ExpiresAt:         t0.Add(time.Hour),
	}
	require.NoError(t, st.Tokens().CreateToken(ctx, tok))

	t.Run("wrong purpose", func(t *testing.T) {
		_, err := st.Tokens().ConsumeToken(ctx, "fp-1", domain.PurposePasswordReset, t0)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("expired", func(t *testing.T) {
		_, err := st.Tokens().ConsumeToken(ctx, "fp-1", domain.PurposeEmailVerification, t0.Add(2*time.Hour))
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("consumed once", func(t *testing.T) {
		sub, err := st.Tokens().ConsumeToken(ctx, "fp-1", domain.PurposeEmailVerification, t0.Add(time.Minute))
		require.NoError(t, err)
		require.Equal(t, i.ID, sub)

		_, err = st.Tokens().ConsumeToken(ctx, "fp-1", domain.PurposeEmailVerification, t0.Add(time.Minute))
		require.ErrorIs(t, err, store.ErrNotFound)

		got, err := st.Tokens().GetTokenByHash(ctx, "fp-1")
		require.NoError(t, err)
		require.NotNil(t, got.UsedAt)
		require.Equal(t, t0.Add(time.Minute), *got.UsedAt)
	})
}

func TestCountIssuedForEmail(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	i := createIdentity(t, st, "erin@example.com", domain.StatusActive)

	for n := range 4 {
		require.NoError(t, st.Tokens().CreateToken(ctx, domain.Token{
			ID:                idx.New().String(),
			TokenHash:         idx.New().String(),
			Purpose:           domain.PurposePasswordReset,
			SubjectIdentityID: i.ID,
			IssuedAt:          t0.Add(time.Duration(n) * 30 * time.Minute),
			ExpiresAt:         t0.Add(5 * time.Hour),
		}))
	}

	n, err := st.Tokens().CountIssuedForEmail(ctx, "ERIN@example.com", domain.PurposePasswordReset,
		t0.Add(30*time.Minute), t0.Add(90*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = st.Tokens().CountIssuedForEmail(ctx, "nobody@example.com", domain.PurposePasswordReset, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)

	deleted, err := st.Tokens().DeleteTokensExpiredBefore(ctx, t0.Add(6*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 4, deleted)
}

func TestDecidePending(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	i := createIdentity(t, st, "fay@example.com", domain.StatusPendingApproval)

	req := domain.AccreditationRequest{
		ID:                  idx.New().String(),
		RequesterIdentityID: i.ID,
		RequestedRoleCode:   domain.RoleCompanyRepresentative,
		Status:              domain.RequestPending,
		CreatedAt:           t0,
	}
	require.NoError(t, st.Accreditations().CreateRequest(ctx, req))

	pending, err := st.Accreditations().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	n, err := st.Accreditations().CountPendingCreatedBefore(ctx, t0.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	note := "incomplete documents"
	ok, err := st.Accreditations().DecidePending(ctx, req.ID, domain.RequestRejected, "rev-1", &note, t0.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = st.Accreditations().DecidePending(ctx, req.ID, domain.RequestApproved, "rev-2", nil, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.False(t, ok)

	got, err := st.Accreditations().GetRequestByID(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RequestRejected, got.Status)
	require.Equal(t, "rev-1", *got.ApproverID)
	require.Equal(t, note, *got.RejectionNote)
	require.Equal(t, t0.Add(time.Hour), *got.DecidedAt)

	_, err = st.Accreditations().GetRequestByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRejectWithoutNoteViolatesSchema(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	i := createIdentity(t, st, "gus@example.com", domain.StatusPendingApproval)
	req := domain.AccreditationRequest{
		ID: idx.New().String(), RequesterIdentityID: i.ID,
		RequestedRoleCode: domain.RoleProfessional, Status: domain.RequestPending, CreatedAt: t0,
	}
	require.NoError(t, st.Accreditations().CreateRequest(ctx, req))

	_, err := st.Accreditations().DecidePending(ctx, req.ID, domain.RequestRejected, "rev-1", nil, t0)
	require.Error(t, err)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx store.Tx) error {
		createIdentity(t, tx, "hal@example.com", domain.StatusDraft)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.Identities().GetIdentityByEmail(ctx, "hal@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := sqlite.NewStoreFromDB(db)
	ctx := context.Background()

	t.Run("rollback on driver failure", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO tokens").WillReturnError(errors.New("disk I/O error"))
		mock.ExpectRollback()

		err := st.WithTx(ctx, func(tx store.Tx) error {
			return tx.Tokens().CreateToken(ctx, domain.Token{ID: "x", Purpose: domain.PurposePasswordReset})
		})
		require.ErrorContains(t, err, "disk I/O error")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure surfaces", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE identities SET status").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

		err := st.WithTx(ctx, func(tx store.Tx) error {
			_, err := tx.Identities().TransitionStatus(ctx, "id",
				[]domain.Status{domain.StatusActive}, domain.StatusDisabled, t0)
			return err
		})
		require.ErrorContains(t, err, "database is locked")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested tx refused", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := st.WithTx(ctx, func(tx store.Tx) error {
			return tx.WithTx(ctx, func(store.Tx) error { return nil })
		})
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
