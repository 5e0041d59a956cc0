package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildstream-io/buildstream/internal/app"
	"github.com/buildstream-io/buildstream/internal/store/drivers/vaultfile"
	"github.com/buildstream-io/buildstream/pkg/vaultx"
)

var (
	vaultPath      string
	authConfigPath string
	passwordFile   string
	backend        string
	lockTimeout    time.Duration

	rootCmd = &cobra.Command{
		Use:   "vaultctl",
		Short: "Operator tooling for the encrypted credential vault",
		Long: `vaultctl manages the encrypted vault files used by the credential
service: seeding the admin registration credential, listing registered
clients, and deactivating clients to free capacity.

Defaults come from the same environment variables the server reads
(VAULT_PASSWORD_FILE, OAUTH_CLIENTS_VAULT_PATH, AUTH_CONFIG_VAULT_PATH,
VAULT_BACKEND); flags override them.`,
	}
)

func init() {
	cfg := app.LoadConfig()

	rootCmd.PersistentFlags().StringVar(&vaultPath, "vault", cfg.ClientsVaultPath,
		"path to the encrypted clients vault file")
	rootCmd.PersistentFlags().StringVar(&authConfigPath, "auth-config", cfg.AuthConfigPath,
		"path to the encrypted auth-config vault file")
	rootCmd.PersistentFlags().StringVar(&passwordFile, "password-file", cfg.VaultPasswordFile,
		"path to the vault passphrase file")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", cfg.VaultBackend,
		"vault codec backend (ansible, age)")
	rootCmd.PersistentFlags().DurationVar(&lockTimeout, "lock-timeout", cfg.VaultLockTimeout,
		"how long to wait for the vault file lock")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(clientsCmd)
}

// openStore builds the vault-backed store from the shared flags.
func openStore() (*vaultfile.Store, error) {
	codec, err := vaultx.New(backend, passwordFile, 0)
	if err != nil {
		return nil, fmt.Errorf("initializing vault codec: %w", err)
	}
	return vaultfile.NewStore(vaultfile.Config{
		Codec:          codec,
		ClientsPath:    vaultPath,
		AuthConfigPath: authConfigPath,
		LockTimeout:    lockTimeout,
	}), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
