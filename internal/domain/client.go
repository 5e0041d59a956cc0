package domain

import (
	"regexp"
	"time"
)

// OAuth scopes a client may be granted. The set is fixed; registration
// requests naming anything else are rejected.
const (
	ScopeCatalogRead  = "catalog:read"
	ScopeCatalogWrite = "catalog:write"
	ScopeAdminRead    = "admin:read"
	ScopeAdminWrite   = "admin:write"
)

// ValidScopes is the allowed scope enumeration.
var ValidScopes = map[string]bool{
	ScopeCatalogRead:  true,
	ScopeCatalogWrite: true,
	ScopeAdminRead:    true,
	ScopeAdminWrite:   true,
}

// DefaultScopes is granted when a registration request names no scopes.
var DefaultScopes = []string{ScopeCatalogRead}

// Client name policy: starts alphanumeric, then alphanumeric/hyphen/underscore.
var clientNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

const (
	MaxClientNameLength  = 64
	MaxDescriptionLength = 256
)

// ValidClientName reports whether name satisfies the client_name policy.
func ValidClientName(name string) bool {
	return name != "" && len(name) <= MaxClientNameLength && clientNamePattern.MatchString(name)
}

// ClientRecord is one registered machine client as persisted in the vault
// document. The plaintext secret never appears here; only its Argon2id hash.
type ClientRecord struct {
	ClientID      string     `yaml:"client_id"`
	ClientName    string     `yaml:"client_name"`
	SecretHash    string     `yaml:"secret_hash"`
	Description   string     `yaml:"description,omitempty"`
	AllowedScopes []string   `yaml:"allowed_scopes"`
	CreatedAt     time.Time  `yaml:"created_at"`
	ExpiresAt     *time.Time `yaml:"expires_at,omitempty"`
	IsActive      bool       `yaml:"is_active"`
}

// AdminCredential is the registration gate credential held in the encrypted
// auth-config document. The encrypted file is the secrecy boundary, so the
// password is stored as-is inside it, matching the vault files provisioned
// by existing tooling.
type AdminCredential struct {
	Username string `yaml:"registration_username"`
	Password string `yaml:"registration_password"`
}
