package vaultx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/buildstream-io/buildstream/pkg/slogx"
)

// Subcommands the CLI backend is permitted to invoke. Anything else is
// rejected before a process is spawned.
var allowedVaultCommands = map[string]bool{
	"view":    true,
	"encrypt": true,
	"decrypt": true,
}

// AnsibleVault is a Codec backed by the ansible-vault CLI. It exists for
// exact compatibility with vault files provisioned by existing ansible
// tooling.
type AnsibleVault struct {
	// PasswordFile is the path to the vault passphrase file passed via
	// --vault-password-file.
	PasswordFile string

	// Timeout bounds each CLI invocation. Zero means DefaultTimeout.
	Timeout time.Duration
}

func (v *AnsibleVault) timeout() time.Duration {
	if v.Timeout > 0 {
		return v.Timeout
	}
	return DefaultTimeout
}

// runVault executes an allow-listed ansible-vault subcommand against target
// and returns its stdout.
func (v *AnsibleVault) runVault(ctx context.Context, command, target string) ([]byte, error) {
	if !allowedVaultCommands[command] {
		return nil, fmt.Errorf("%w: %q", ErrCommandNotAllowed, command)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout())
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ansible-vault",
		command, target, "--vault-password-file", v.PasswordFile)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Stderr may reference paths and passphrase files; log it
		// server-side, never propagate it to callers.
		slogx.FromContext(ctx).Error("ansible-vault command failed",
			"command", command,
			"error", err,
			"stderr", strings.TrimSpace(stderr.String()),
		)
		return nil, err
	}
	return stdout.Bytes(), nil
}

func (v *AnsibleVault) checkPasswordFile() error {
	if _, err := os.Stat(v.PasswordFile); err != nil {
		return fmt.Errorf("%w: %s", ErrConfig, v.PasswordFile)
	}
	return nil
}

// Decrypt returns the plaintext of the vault file at path via
// "ansible-vault view".
func (v *AnsibleVault) Decrypt(ctx context.Context, path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err := v.checkPasswordFile(); err != nil {
		return nil, err
	}

	out, err := v.runVault(ctx, "view", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecryptFailed, path)
	}
	return out, nil
}

// EncryptAndStore encrypts plaintext with "ansible-vault encrypt" on a
// private temp file and atomically renames the result over path.
func (v *AnsibleVault) EncryptAndStore(ctx context.Context, path string, plaintext []byte) error {
	if err := v.checkPasswordFile(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: creating vault directory", ErrEncryptFailed)
	}

	// Temp file lives in the destination directory so the final rename
	// stays on one filesystem and is atomic.
	tmp, err := os.CreateTemp(dir, ".vault-*.yml")
	if err != nil {
		return fmt.Errorf("%w: creating temp file", ErrEncryptFailed)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // No plaintext left behind on any exit path.

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: restricting temp file permissions", ErrEncryptFailed)
	}
	if _, err := tmp.Write(plaintext); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing temp file", ErrEncryptFailed)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file", ErrEncryptFailed)
	}

	if _, err := v.runVault(ctx, "encrypt", tmpPath); err != nil {
		return fmt.Errorf("%w: %s", ErrEncryptFailed, path)
	}

	// The existing file at path is only replaced once the encrypted bytes
	// are fully on disk; a crash before this point leaves it untouched.
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: replacing vault file", ErrEncryptFailed)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("%w: restricting vault file permissions", ErrEncryptFailed)
	}
	return nil
}
