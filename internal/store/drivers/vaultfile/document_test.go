package vaultfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Vault files provisioned by external tooling carry this exact shape; the
// decoder must accept it as-is.
const provisionedDocument = `
oauth_clients:
  bld_0123456789abcdef0123456789abcdef:
    client_id: bld_0123456789abcdef0123456789abcdef
    client_name: build-agent-1
    secret_hash: $argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA
    description: primary build agent
    allowed_scopes:
      - catalog:read
      - catalog:write
    created_at: 2026-01-21T07:31:00Z
    is_active: true
auth_config:
  registration_username: admin
  registration_password: s3cret
`

func TestParseProvisionedDocument(t *testing.T) {
	doc, err := parseDocument([]byte(provisionedDocument))
	require.NoError(t, err)

	rec, ok := doc.OAuthClients["bld_0123456789abcdef0123456789abcdef"]
	require.True(t, ok)
	require.Equal(t, "build-agent-1", rec.ClientName)
	require.Equal(t, []string{"catalog:read", "catalog:write"}, rec.AllowedScopes)
	require.True(t, rec.IsActive)
	require.Nil(t, rec.ExpiresAt)

	require.NotNil(t, doc.AuthConfig)
	require.Equal(t, "admin", doc.AuthConfig.Username)
}

func TestParseEmptyAndMalformedDocuments(t *testing.T) {
	doc, err := parseDocument(nil)
	require.NoError(t, err)
	require.NotNil(t, doc.OAuthClients)
	require.Empty(t, doc.OAuthClients)

	_, err = parseDocument([]byte("oauth_clients: [not: a: mapping"))
	require.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	doc, err := parseDocument([]byte(provisionedDocument))
	require.NoError(t, err)

	encoded, err := doc.encode()
	require.NoError(t, err)

	decoded, err := parseDocument(encoded)
	require.NoError(t, err)
	require.Equal(t, doc, decoded)
}
