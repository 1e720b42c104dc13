package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/stretchr/testify/require"
)

func TestRegistryTransitions(t *testing.T) {
	type step func(r *Registry, ctx context.Context, id string) error

	var (
		submit      step = (*Registry).Submit
		forApproval step = (*Registry).SubmitForApproval
		verify      step = (*Registry).VerifyEmail
		approve     step = (*Registry).ReviewerApprove
		reject      step = (*Registry).ReviewerReject
		complete    step = (*Registry).CompleteRegistration
		disable     step = (*Registry).Disable
		enable      step = (*Registry).Enable
	)

	cases := []struct {
		name  string
		path  []step
		final domain.Status
	}{
		{"self registration", []step{submit, verify}, domain.StatusActive},
		{"accreditation from draft", []step{approve, complete}, domain.StatusActive},
		{"accreditation via pending approval", []step{forApproval, approve, complete}, domain.StatusActive},
		{"rejection", []step{forApproval, reject}, domain.StatusRejected},
		{"disable and enable", []step{submit, verify, disable, enable}, domain.StatusActive},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			i, err := h.registry.Create(ctx, "flow@example.com", "")
			require.NoError(t, err)
			require.Equal(t, domain.StatusDraft, i.Status)

			for _, s := range tc.path {
				require.NoError(t, s(h.registry, ctx, i.ID))
			}
			require.Equal(t, tc.final, h.status(t, i.ID))
		})
	}
}

func TestRegistryRejectsIllegalTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	i, err := h.registry.Create(ctx, "strict@example.com", "plain$x")
	require.NoError(t, err)

	illegal := map[string]func(context.Context, string) error{
		"verify":   h.registry.VerifyEmail,
		"reject":   h.registry.ReviewerReject,
		"complete": h.registry.CompleteRegistration,
		"disable":  h.registry.Disable,
		"enable":   h.registry.Enable,
	}
	for name, fn := range illegal {
		err := fn(ctx, i.ID)
		require.ErrorIs(t, err, ErrIllegalState, name)

		var ise *IllegalStateError
		require.ErrorAs(t, err, &ise)
		require.Equal(t, domain.StatusDraft, ise.From)
	}

	got, err := h.registry.Get(ctx, i.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDraft, got.Status)
	require.Equal(t, i.UpdatedAt, got.UpdatedAt, "no side effects")

	require.ErrorIs(t, h.registry.Submit(ctx, "missing"), ErrNotFound)
}

func TestRegistrySetPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	i, err := h.registry.Create(ctx, "pw@example.com", "plain$old")
	require.NoError(t, err)

	for _, blocked := range []func(context.Context, string) error{nil, h.registry.Submit} {
		if blocked != nil {
			require.NoError(t, blocked(ctx, i.ID))
		}
		require.ErrorIs(t, h.registry.SetPassword(ctx, i.ID, "plain$new"), ErrIllegalState)
		got, err := h.registry.Get(ctx, i.ID)
		require.NoError(t, err)
		require.Equal(t, "plain$old", got.CredentialHash)
	}

	require.NoError(t, h.registry.VerifyEmail(ctx, i.ID))
	require.NoError(t, h.registry.SetPassword(ctx, i.ID, "plain$new"))
	got, err := h.registry.Get(ctx, i.ID)
	require.NoError(t, err)
	require.Equal(t, "plain$new", got.CredentialHash)

	require.NoError(t, h.registry.Disable(ctx, i.ID))
	require.ErrorIs(t, h.registry.SetPassword(ctx, i.ID, "plain$newer"), ErrIllegalState)
}

func TestRegistryCreateAndLookup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	i, err := h.registry.Create(ctx, "case@example.com", "")
	require.NoError(t, err)

	_, err = h.registry.Create(ctx, "case@example.com", "")
	require.ErrorIs(t, err, ErrDuplicateEmail)

	got, err := h.registry.FindByEmail(ctx, "  CASE@example.COM ")
	require.NoError(t, err)
	require.Equal(t, i.ID, got.ID)

	_, err = h.registry.FindByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, h.registry.GrantRole(ctx, i.ID, domain.RoleExternalUser))
	require.NoError(t, h.registry.GrantRole(ctx, i.ID, domain.RoleExternalUser))
	roles, err := h.registry.Roles(ctx, i.ID)
	require.NoError(t, err)
	require.Equal(t, []string{domain.RoleExternalUser}, roles)
}
