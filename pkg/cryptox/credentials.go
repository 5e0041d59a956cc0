package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Credential prefixes distinguish the buildstream namespace so leaked values
// can be attributed and scanned for.
const (
	ClientIDPrefix     = "bld_"
	ClientSecretPrefix = "bld_s_"

	clientIDBytes     = 16
	clientSecretBytes = 32
)

// NewClientID generates a client identifier: "bld_" followed by 32 hex
// characters. Uniqueness is probabilistic; the credential store rejects the
// (practically impossible) accidental collision on save.
func NewClientID() (string, error) {
	buf := make([]byte, clientIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate client id: %w", err)
	}
	return ClientIDPrefix + hex.EncodeToString(buf), nil
}

// NewClientSecret generates a client secret: "bld_s_" followed by the
// base64url encoding (no padding) of 32 random bytes. The plaintext is
// handed to the caller exactly once and never persisted.
func NewClientSecret() (string, error) {
	buf := make([]byte, clientSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate client secret: %w", err)
	}
	return ClientSecretPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}
