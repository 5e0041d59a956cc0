package vaultfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildstream-io/buildstream/internal/domain"
	"github.com/buildstream-io/buildstream/pkg/vaultx"
)

func TestSetCredential(t *testing.T) {
	ctx := context.Background()

	newStoreAt := func(t *testing.T) (*Store, string) {
		t.Helper()
		dir := t.TempDir()
		passFile := filepath.Join(dir, ".vault_pass")
		require.NoError(t, os.WriteFile(passFile, []byte("test-pass\n"), 0o600))
		st := NewStore(Config{
			Codec:       &vaultx.AgeVault{PasswordFile: passFile},
			ClientsPath: filepath.Join(dir, "oauth_credentials.yml"),
		})
		return st, dir
	}

	t.Run("creates vault file on first run", func(t *testing.T) {
		st, _ := newStoreAt(t)

		err := st.Admin().SetCredential(ctx, domain.AdminCredential{
			Username: "admin",
			Password: "pw",
		})
		require.NoError(t, err)

		cred, err := st.Admin().Credential(ctx)
		require.NoError(t, err)
		require.Equal(t, "admin", cred.Username)
		require.Equal(t, "pw", cred.Password)
	})

	t.Run("replaces credential and keeps client records", func(t *testing.T) {
		st, _ := newStoreAt(t)

		require.NoError(t, st.Clients().SaveClient(ctx, domain.ClientRecord{
			ClientID:   "bld_00000000000000000000000000000001",
			ClientName: "agent",
			SecretHash: "hash",
			IsActive:   true,
		}))
		require.NoError(t, st.Admin().SetCredential(ctx, domain.AdminCredential{
			Username: "admin",
			Password: "old-pw",
		}))
		require.NoError(t, st.Admin().SetCredential(ctx, domain.AdminCredential{
			Username: "admin",
			Password: "new-pw",
		}))

		cred, err := st.Admin().Credential(ctx)
		require.NoError(t, err)
		require.Equal(t, "new-pw", cred.Password)

		clients, err := st.Clients().ListClients(ctx)
		require.NoError(t, err)
		require.Len(t, clients, 1)
	})
}
