package service

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/buildstream-io/buildstream/internal/domain"
	"github.com/buildstream-io/buildstream/internal/store"
	"github.com/buildstream-io/buildstream/internal/store/drivers/vaultfile"
	"github.com/buildstream-io/buildstream/pkg/cryptox"
	"github.com/buildstream-io/buildstream/pkg/vaultx"
)

func newRegistrationService(t *testing.T, maxActive int) (*RegistrationService, string) {
	t.Helper()
	dir := t.TempDir()
	passFile := filepath.Join(dir, ".vault_pass")
	require.NoError(t, os.WriteFile(passFile, []byte("test-pass\n"), 0o600))

	codec := &vaultx.AgeVault{PasswordFile: passFile}
	st := vaultfile.NewStore(vaultfile.Config{
		Codec:            codec,
		ClientsPath:      filepath.Join(dir, "oauth_credentials.yml"),
		MaxActiveClients: maxActive,
		LockTimeout:      5 * time.Second,
	})
	return &RegistrationService{Store: st}, dir
}

func seedAdminCredential(t *testing.T, dir, username, password string) {
	t.Helper()
	codec := &vaultx.AgeVault{PasswordFile: filepath.Join(dir, ".vault_pass")}
	doc := "auth_config:\n" +
		"  registration_username: " + username + "\n" +
		"  registration_password: " + password + "\n"
	require.NoError(t, codec.EncryptAndStore(context.Background(),
		filepath.Join(dir, "oauth_credentials.yml"), []byte(doc)))
}

func TestRegisterClientScenario(t *testing.T) {
	ctx := context.Background()
	svc, dir := newRegistrationService(t, 1)

	client, err := svc.RegisterClient(ctx, "build-agent-1", "", []string{domain.ScopeCatalogRead})
	require.NoError(t, err)

	require.Regexp(t, regexp.MustCompile(`^bld_[0-9a-f]{32}$`), client.ClientID)
	require.Regexp(t, regexp.MustCompile(`^bld_s_[A-Za-z0-9_-]{43}$`), client.ClientSecret)
	require.Equal(t, "build-agent-1", client.ClientName)
	require.Equal(t, []string{domain.ScopeCatalogRead}, client.AllowedScopes)
	require.Nil(t, client.ExpiresAt)

	// The stored record holds only the hash and it verifies the returned secret.
	clients, err := svc.ListClients(ctx)
	require.NoError(t, err)
	rec := clients[client.ClientID]
	require.True(t, rec.IsActive)
	require.NotEqual(t, client.ClientSecret, rec.SecretHash)
	require.True(t, cryptox.VerifySecret(client.ClientSecret, rec.SecretHash))

	// The persisted document never contains the plaintext secret.
	codec := &vaultx.AgeVault{PasswordFile: filepath.Join(dir, ".vault_pass")}
	data, err := codec.Decrypt(ctx, filepath.Join(dir, "oauth_credentials.yml"))
	require.NoError(t, err)
	require.NotContains(t, string(data), client.ClientSecret)
}

func TestRegisterClientDefaultsScopes(t *testing.T) {
	svc, _ := newRegistrationService(t, 1)

	client, err := svc.RegisterClient(context.Background(), "build-agent-1", "agent", nil)
	require.NoError(t, err)
	require.Equal(t, domain.DefaultScopes, client.AllowedScopes)
}

func TestRegisterClientEachCallMintsFreshCredentials(t *testing.T) {
	svc, _ := newRegistrationService(t, 2)

	a, err := svc.RegisterClient(context.Background(), "svc-a", "", nil)
	require.NoError(t, err)
	b, err := svc.RegisterClient(context.Background(), "svc-b", "", nil)
	require.NoError(t, err)

	require.NotEqual(t, a.ClientID, b.ClientID)
	require.NotEqual(t, a.ClientSecret, b.ClientSecret)
}

func TestRegisterClientPropagatesStoreRejections(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRegistrationService(t, 2)

	_, err := svc.RegisterClient(ctx, "svc-a", "", nil)
	require.NoError(t, err)

	_, err = svc.RegisterClient(ctx, "svc-a", "", nil)
	require.ErrorIs(t, err, store.ErrClientExists)
}

func TestConcurrentRegistrationsWithCapacityOne(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRegistrationService(t, 1)

	const n = 6
	results := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = svc.RegisterClient(ctx, "agent-"+string(rune('a'+i)), "", nil)
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, store.ErrMaxClientsReached)
		}
	}
	require.Equal(t, 1, successes)
}

func TestVerifyRegistrationCredentials(t *testing.T) {
	ctx := context.Background()
	svc, dir := newRegistrationService(t, 1)

	t.Run("unreadable admin document is service unavailable", func(t *testing.T) {
		err := svc.VerifyRegistrationCredentials(ctx, "admin", "pw")
		require.ErrorIs(t, err, ErrServiceUnavailable)
	})

	seedAdminCredential(t, dir, "admin", "correct-pw")

	t.Run("valid credentials pass", func(t *testing.T) {
		require.NoError(t, svc.VerifyRegistrationCredentials(ctx, "admin", "correct-pw"))
	})

	t.Run("wrong password fails authentication", func(t *testing.T) {
		err := svc.VerifyRegistrationCredentials(ctx, "admin", "wrong-pw")
		require.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("wrong username fails authentication", func(t *testing.T) {
		err := svc.VerifyRegistrationCredentials(ctx, "root", "correct-pw")
		require.ErrorIs(t, err, ErrAuthenticationFailed)
	})
}
