package vaultx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

// AgeVault is a Codec using filippo.io/age scrypt (passphrase) encryption.
// It reads the same passphrase file as the CLI backend but performs all
// cryptography in-process, so there is no subprocess and no CLI dependency.
// Files written by one backend are not readable by the other.
type AgeVault struct {
	// PasswordFile is the path to the vault passphrase file.
	PasswordFile string
}

func (v *AgeVault) passphrase() (string, error) {
	raw, err := os.ReadFile(v.PasswordFile)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrConfig, v.PasswordFile)
	}
	pass := strings.TrimSpace(string(raw))
	if pass == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrConfig, v.PasswordFile)
	}
	return pass, nil
}

// Decrypt returns the plaintext of the age-encrypted vault file at path.
func (v *AgeVault) Decrypt(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pass, err := v.passphrase()
	if err != nil {
		return nil, err
	}

	ciphertext, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s", ErrDecryptFailed, path)
	}

	identity, err := age.NewScryptIdentity(pass)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecryptFailed, path)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecryptFailed, path)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecryptFailed, path)
	}
	return plaintext, nil
}

// EncryptAndStore encrypts plaintext to a scrypt recipient derived from the
// passphrase file and atomically renames the result over path.
func (v *AgeVault) EncryptAndStore(ctx context.Context, path string, plaintext []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pass, err := v.passphrase()
	if err != nil {
		return err
	}

	recipient, err := age.NewScryptRecipient(pass)
	if err != nil {
		return fmt.Errorf("%w: deriving recipient", ErrEncryptFailed)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: creating vault directory", ErrEncryptFailed)
	}

	tmp, err := os.CreateTemp(dir, ".vault-*.age")
	if err != nil {
		return fmt.Errorf("%w: creating temp file", ErrEncryptFailed)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: restricting temp file permissions", ErrEncryptFailed)
	}

	writer, err := age.Encrypt(tmp, recipient)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("%w: starting encryption", ErrEncryptFailed)
	}
	if _, err := writer.Write(plaintext); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing ciphertext", ErrEncryptFailed)
	}
	if err := writer.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: finalizing encryption", ErrEncryptFailed)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file", ErrEncryptFailed)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: replacing vault file", ErrEncryptFailed)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("%w: restricting vault file permissions", ErrEncryptFailed)
	}
	return nil
}
