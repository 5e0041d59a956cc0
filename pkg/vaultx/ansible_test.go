package vaultx

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// installStubVault places a fake ansible-vault executable at the front of
// PATH. The stub base64-"encrypts" in place on encrypt and decodes to stdout
// on view, which is enough to exercise the transport without ansible.
func installStubVault(t *testing.T, script string) {
	t.Helper()
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "ansible-vault")
	require.NoError(t, os.WriteFile(stub, []byte(script), 0o755))
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

const workingStub = `#!/bin/sh
# args: <command> <target> --vault-password-file <file>
cmd="$1"; target="$2"
case "$cmd" in
  encrypt) base64 "$target" > "$target.enc" && mv "$target.enc" "$target" ;;
  view)    base64 -d "$target" ;;
  *)       exit 2 ;;
esac
`

const failingStub = `#!/bin/sh
echo "ERROR! simulated vault failure" >&2
exit 1
`

func newAnsibleVault(t *testing.T) (*AnsibleVault, string) {
	t.Helper()
	dir := t.TempDir()
	passFile := filepath.Join(dir, ".vault_pass")
	require.NoError(t, os.WriteFile(passFile, []byte("pass\n"), 0o600))
	return &AnsibleVault{PasswordFile: passFile}, dir
}

func TestAnsibleVaultRoundTripWithStub(t *testing.T) {
	installStubVault(t, workingStub)
	ctx := context.Background()
	v, dir := newAnsibleVault(t)
	path := filepath.Join(dir, "credentials.yml")

	plaintext := []byte("auth_config:\n  registration_username: admin\n")
	require.NoError(t, v.EncryptAndStore(ctx, path, plaintext))

	got, err := v.Decrypt(ctx, path)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestAnsibleVaultEncryptFailureLeavesOriginalUntouched(t *testing.T) {
	installStubVault(t, workingStub)
	ctx := context.Background()
	v, dir := newAnsibleVault(t)
	path := filepath.Join(dir, "credentials.yml")

	require.NoError(t, v.EncryptAndStore(ctx, path, []byte("original document")))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// Swap in a vault CLI that dies mid-encryption, as a crash between
	// temp-file encryption and the final replace would.
	installStubVault(t, failingStub)

	err = v.EncryptAndStore(ctx, path, []byte("replacement document"))
	require.ErrorIs(t, err, ErrEncryptFailed)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after, "failed write must leave the vault file byte-for-byte unchanged")

	// And the plaintext temp file must be cleaned up.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".vault-", "plaintext temp file left behind: %s", e.Name())
	}
}

func TestAnsibleVaultMissingVaultFileIsNotFound(t *testing.T) {
	installStubVault(t, workingStub)
	v, dir := newAnsibleVault(t)

	_, err := v.Decrypt(context.Background(), filepath.Join(dir, "missing.yml"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAnsibleVaultMissingPassphraseIsConfigError(t *testing.T) {
	installStubVault(t, workingStub)
	dir := t.TempDir()
	v := &AnsibleVault{PasswordFile: filepath.Join(dir, "no-such-pass")}

	vaultPath := filepath.Join(dir, "credentials.yml")
	require.NoError(t, os.WriteFile(vaultPath, []byte("ciphertext"), 0o600))

	_, err := v.Decrypt(context.Background(), vaultPath)
	require.ErrorIs(t, err, ErrConfig)

	err = v.EncryptAndStore(context.Background(), vaultPath, []byte("data"))
	require.ErrorIs(t, err, ErrConfig)
}

func TestAnsibleVaultDecryptFailure(t *testing.T) {
	installStubVault(t, failingStub)
	ctx := context.Background()
	v, dir := newAnsibleVault(t)

	vaultPath := filepath.Join(dir, "credentials.yml")
	require.NoError(t, os.WriteFile(vaultPath, []byte("ciphertext"), 0o600))

	_, err := v.Decrypt(ctx, vaultPath)
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestRunVaultRejectsUnlistedCommands(t *testing.T) {
	// No stub installed: the allow-list must reject before any process
	// could be spawned, so the absence of the binary is never observed.
	v, dir := newAnsibleVault(t)

	_, err := v.runVault(context.Background(), "delete", filepath.Join(dir, "credentials.yml"))
	require.ErrorIs(t, err, ErrCommandNotAllowed)

	_, err = v.runVault(context.Background(), "view; rm -rf /", "target")
	require.ErrorIs(t, err, ErrCommandNotAllowed)
}
