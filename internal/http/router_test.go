package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/buildstream-io/buildstream/internal/service"
	"github.com/buildstream-io/buildstream/internal/store/drivers/vaultfile"
	"github.com/buildstream-io/buildstream/pkg/vaultx"
)

func newTestRouter(t *testing.T, seedVault bool) *Router {
	t.Helper()
	dir := t.TempDir()
	passFile := filepath.Join(dir, ".vault_pass")
	require.NoError(t, os.WriteFile(passFile, []byte("test-pass\n"), 0o600))

	codec := &vaultx.AgeVault{PasswordFile: passFile}
	clientsPath := filepath.Join(dir, "oauth_credentials.yml")
	if seedVault {
		require.NoError(t, codec.EncryptAndStore(t.Context(), clientsPath, []byte("oauth_clients: {}\n")))
	}

	st := vaultfile.NewStore(vaultfile.Config{
		Codec:       codec,
		ClientsPath: clientsPath,
		LockTimeout: 5 * time.Second,
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRouter("test", st, logger)
	r.RegistrationService = &service.RegistrationService{Store: st}
	r.CatalogService = &service.CatalogService{OutputDir: t.TempDir()}
	r.ApplyRoutes()
	return r
}

func TestLivezAlwaysOK(t *testing.T) {
	r := newTestRouter(t, false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, "test", resp.Version)
}

func TestReadyzReportsVaultState(t *testing.T) {
	t.Run("decryptable vault is ready", func(t *testing.T) {
		r := newTestRouter(t, true)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing vault file is still ready", func(t *testing.T) {
		r := newTestRouter(t, false)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRouterRoutesRegistered(t *testing.T) {
	r := newTestRouter(t, false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register", nil))
	require.NotEqual(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/clients", nil))
	require.NotEqual(t, http.StatusNotFound, rec.Code)
}
