package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/aussiebroadwan/portalid/internal/identity/obs"
	"github.com/aussiebroadwan/portalid/internal/identity/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// plainHasher keeps tests fast; argon2 is covered in cryptox.
type plainHasher struct{}

func (plainHasher) Hash(raw string) (string, error) { return "plain$" + raw, nil }
func (plainHasher) Verify(raw, hash string) bool    { return hash == "plain$"+raw }

// lengthPolicy accepts passwords of at least 12 characters.
type lengthPolicy struct{}

func (lengthPolicy) Check(raw string) []string {
	if len(raw) < 12 {
		return []string{"must be at least 12 characters"}
	}
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []domain.Email
	fail bool
}

func (m *fakeMailer) Send(_ context.Context, e domain.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp relay unavailable")
	}
	m.sent = append(m.sent, e)
	return nil
}

func (m *fakeMailer) Sent() []domain.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Email(nil), m.sent...)
}

// Last returns the most recent email. With no LinkBuilder configured its
// Link is the raw token.
func (m *fakeMailer) Last(t *testing.T) domain.Email {
	t.Helper()
	sent := m.Sent()
	require.NotEmpty(t, sent, "no email sent")
	return sent[len(sent)-1]
}

type recordingSessions struct {
	mu   sync.Mutex
	ids  []string
	fail bool
}

func (r *recordingSessions) InvalidateAll(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("session store unavailable")
	}
	r.ids = append(r.ids, id)
	return nil
}

func (r *recordingSessions) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

type harness struct {
	st       *sqlite.Store
	clock    *fakeClock
	mail     *fakeMailer
	sessions *recordingSessions
	metrics  *obs.Metrics

	registry      *Registry
	vault         *TokenVault
	limiter       *RateLimiter
	registration  *RegistrationService
	recovery      *RecoveryService
	accreditation *AccreditationService
	admin         *AdminService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "identity.db")))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	h := &harness{
		st:       st,
		clock:    newFakeClock(),
		mail:     &fakeMailer{},
		sessions: &recordingSessions{},
		metrics:  obs.New(),
	}
	h.registry = &Registry{Store: st, Clock: h.clock}
	h.vault = &TokenVault{Store: st, Clock: h.clock, Metrics: h.metrics}
	h.limiter = &RateLimiter{Store: st, Clock: h.clock}

	h.registration = &RegistrationService{
		Store: st, Registry: h.registry, Vault: h.vault, Limiter: h.limiter,
		Hasher: plainHasher{}, Policy: lengthPolicy{}, Mailer: h.mail, Metrics: h.metrics,
	}
	h.recovery = &RecoveryService{
		Store: st, Registry: h.registry, Vault: h.vault, Limiter: h.limiter,
		Hasher: plainHasher{}, Policy: lengthPolicy{}, Mailer: h.mail, Sessions: h.sessions,
		Metrics: h.metrics,
	}
	h.accreditation = &AccreditationService{
		Store: st, Registry: h.registry, Vault: h.vault, Mailer: h.mail,
		Metrics: h.metrics, Clock: h.clock,
	}
	h.admin = &AdminService{Store: st, Registry: h.registry, Sessions: h.sessions, Metrics: h.metrics}
	return h
}

var (
	reviewer = domain.Actor{ID: "rev-7", Scopes: []string{domain.ScopeAccreditationReview}}
	operator = domain.Actor{ID: "ops-1", Scopes: []string{domain.ScopeIdentityAdmin}}
)

const goodPassword = "correct horse battery"

// activeIdentity registers and verifies email, returning the identity id.
func (h *harness) activeIdentity(t *testing.T, email string) string {
	t.Helper()
	ctx := context.Background()
	ident, err := h.registration.Register(ctx, email, goodPassword)
	require.NoError(t, err)
	require.NoError(t, h.registration.VerifyEmail(ctx, h.mail.Last(t).Link))
	return ident.ID
}

func (h *harness) status(t *testing.T, id string) domain.Status {
	t.Helper()
	i, err := h.registry.Get(context.Background(), id)
	require.NoError(t, err)
	return i.Status
}

func (h *harness) emailsTo(addr string) int {
	n := 0
	for _, e := range h.mail.Sent() {
		if strings.EqualFold(e.To, addr) {
			n++
		}
	}
	return n
}
