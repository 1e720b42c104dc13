package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/portalid/internal/identity/service"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := defaultConfig()
	cfg.LogLevel = "error"
	cfg.JWTSecret = testSecret
	cfg.DatabaseFile = filepath.Join(dir, "identity.db")
	cfg.PepperFile = filepath.Join(dir, "secrets", "pepper")
	return cfg
}

func TestNewWiresRoutes(t *testing.T) {
	application, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.closeBackends() })

	rec := httptest.NewRecorder()
	application.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/registrations",
		strings.NewReader(`{"email":"new@portal.example","password":"Tidal-Sloop-42"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	application.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// Workflow email goes through the background outbox.
	require.Equal(t, service.EmailDispatcher(application.outbox), application.mailer)

	// Stored credentials go through argon2id with the generated pepper.
	ident, err := application.db.Identities().GetIdentityByEmail(t.Context(), "new@portal.example")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ident.CredentialHash, "$argon2id$"))
}

func TestNewRejectsMissingPublicKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTPublicKeyFile = filepath.Join(t.TempDir(), "absent.pem")

	_, err := New(cfg)
	require.ErrorContains(t, err, "public key")
}
