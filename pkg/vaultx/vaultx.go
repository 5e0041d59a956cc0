// Package vaultx reads and writes encrypted vault files. A vault file holds a
// small structured document (YAML) encrypted at rest with a passphrase kept in
// a separate passphrase file.
//
// Two codec backends are provided: AnsibleVault shells out to the
// ansible-vault CLI for exact compatibility with existing encrypted files,
// and AgeVault uses filippo.io/age scrypt encryption with the same
// passphrase file and no subprocess. Both follow the same write discipline:
// plaintext goes to an owner-only temp file in the destination directory,
// the encrypted result replaces the destination via rename, and the temp
// file is removed on every exit path.
package vaultx

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for vault operations. Callers match with errors.Is.
var (
	// ErrNotFound reports a missing vault file on decrypt. For the client
	// store this is the valid "empty store" state, not a failure.
	ErrNotFound = errors.New("vaultx: vault file not found")

	// ErrDecryptFailed reports a decryption failure: bad passphrase,
	// corrupt ciphertext, non-zero CLI exit, or timeout.
	ErrDecryptFailed = errors.New("vaultx: failed to decrypt vault")

	// ErrEncryptFailed reports an encryption or store failure.
	ErrEncryptFailed = errors.New("vaultx: failed to encrypt vault")

	// ErrConfig reports missing or unreadable passphrase material.
	ErrConfig = errors.New("vaultx: vault passphrase file missing or unreadable")

	// ErrCommandNotAllowed reports an attempt to run a vault subcommand
	// outside the allow-list. Rejected before any process is spawned.
	ErrCommandNotAllowed = errors.New("vaultx: vault command not allowed")
)

// DefaultTimeout bounds a single encrypt or decrypt operation.
const DefaultTimeout = 30 * time.Second

// Codec encrypts and decrypts vault files on disk.
type Codec interface {
	// Decrypt returns the plaintext contents of the vault file at path.
	// Fails with ErrNotFound if path does not exist, ErrConfig if the
	// passphrase material is unavailable, ErrDecryptFailed otherwise.
	Decrypt(ctx context.Context, path string) ([]byte, error)

	// EncryptAndStore encrypts plaintext and atomically replaces the file
	// at path with the ciphertext. The destination is created with
	// owner-only permissions. A crash mid-operation leaves any existing
	// file at path untouched.
	EncryptAndStore(ctx context.Context, path string, plaintext []byte) error
}

// New returns the Codec for the named backend: "ansible" (default) or "age".
func New(backend, passwordFile string, timeout time.Duration) (Codec, error) {
	switch backend {
	case "", "ansible":
		return &AnsibleVault{PasswordFile: passwordFile, Timeout: timeout}, nil
	case "age":
		return &AgeVault{PasswordFile: passwordFile}, nil
	default:
		return nil, fmt.Errorf("vaultx: unknown backend %q", backend)
	}
}
