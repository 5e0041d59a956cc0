package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id policy. The parameters are embedded in every hash, so changing
// them never breaks verification of existing hashes; NeedsRehash reports
// hashes minted under an older policy.
const (
	memory      = 64 * 1024 // Memory usage in KiB (64 MiB)
	iterations  = 3         // Iteration count
	parallelism = 4         // Number of threads
	keyLength   = 32        // Length of the derived digest
	saltLength  = 16        // Length of the salt
)

type hashParams struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	digest      []byte
}

// HashSecret generates a PHC-format Argon2id hash string including salt and parameters.
func HashSecret(secret string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	digest := argon2.IDKey(
		[]byte(secret),
		salt,
		iterations,
		memory,
		parallelism,
		keyLength,
	)
	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Digest := base64.RawStdEncoding.EncodeToString(digest)

	// Return PHC-style encoded string
	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory,
		iterations,
		parallelism,
		b64Salt,
		b64Digest,
	), nil
}

// VerifySecret compares a plaintext secret against a PHC-style Argon2id hash.
// It returns false on mismatch and on malformed hashes alike; for credential
// checks both cases mean "not authenticated".
func VerifySecret(secret, encodedHash string) bool {
	params, err := parseHash(encodedHash)
	if err != nil {
		return false
	}

	computed := argon2.IDKey(
		[]byte(secret),
		params.salt,
		params.iterations,
		params.memory,
		params.parallelism,
		uint32(len(params.digest)), // #nosec G115 - digest length is bounded by the encoded hash
	)

	return subtle.ConstantTimeCompare(computed, params.digest) == 1
}

// NeedsRehash reports whether a stored hash was minted under parameters that
// differ from the current policy. Unparseable hashes report true, failing
// safe toward rehashing.
func NeedsRehash(encodedHash string) bool {
	params, err := parseHash(encodedHash)
	if err != nil {
		return true
	}
	return params.memory != memory ||
		params.iterations != iterations ||
		params.parallelism != parallelism ||
		len(params.salt) != saltLength ||
		len(params.digest) != keyLength
}

// parseHash decodes a PHC-format string: $argon2id$v=19$m=X,t=Y,p=Z$salt$digest
func parseHash(encodedHash string) (hashParams, error) {
	parts := make([]string, 0, 6)
	start := 0
	for i := range len(encodedHash) {
		if encodedHash[i] == '$' {
			parts = append(parts, encodedHash[start:i])
			start = i + 1
		}
	}
	parts = append(parts, encodedHash[start:]) // Add last part

	// Validate structure: ["", "argon2id", "v=19", "m=X,t=Y,p=Z", "salt", "digest"]
	if len(parts) != 6 {
		return hashParams{}, errors.New("invalid hash format: expected 6 parts")
	}
	if parts[1] != "argon2id" {
		return hashParams{}, errors.New("invalid hash format: not argon2id")
	}
	if parts[2] != "v=19" {
		return hashParams{}, errors.New("invalid hash format: wrong version")
	}

	var p hashParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return hashParams{}, fmt.Errorf("invalid hash format: failed to parse parameters: %w", err)
	}

	var err error
	p.salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return hashParams{}, fmt.Errorf("invalid hash format: failed to decode salt: %w", err)
	}
	p.digest, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return hashParams{}, fmt.Errorf("invalid hash format: failed to decode digest: %w", err)
	}

	return p, nil
}
