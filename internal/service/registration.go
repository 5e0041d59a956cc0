package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/buildstream-io/buildstream/internal/domain"
	"github.com/buildstream-io/buildstream/internal/store"
	"github.com/buildstream-io/buildstream/pkg/cryptox"
	"github.com/buildstream-io/buildstream/pkg/slogx"
)

var (
	// ErrAuthenticationFailed reports an admin credential mismatch.
	ErrAuthenticationFailed = errors.New("service: invalid registration credentials")

	// ErrServiceUnavailable reports that the admin credential document
	// could not be read at all. Distinct from a wrong credential so
	// callers can tell misconfiguration from bad input.
	ErrServiceUnavailable = errors.New("service: registration service unavailable")
)

// RegisteredClient is returned once per successful registration. ClientSecret
// carries the only copy of the plaintext secret that will ever exist.
type RegisteredClient struct {
	ClientID      string
	ClientSecret  string
	ClientName    string
	AllowedScopes []string
	CreatedAt     time.Time
	ExpiresAt     *time.Time
}

// RegistrationService implements the client registration protocol: gate the
// caller on the admin credential, mint credentials, hash the secret, and
// delegate durable storage to the credential store. No automatic retries;
// every call mints fresh credentials.
type RegistrationService struct {
	Store store.Store
}

// VerifyRegistrationCredentials checks the caller's Basic Auth credentials
// against the admin credential held in the vault.
func (s *RegistrationService) VerifyRegistrationCredentials(ctx context.Context, username, password string) error {
	l := slogx.FromContext(ctx)

	cred, err := s.Store.Admin().Credential(ctx)
	if err != nil {
		l.Error("failed to read registration credentials from vault", "error", err)
		return ErrServiceUnavailable
	}

	// Compare both fields unconditionally to keep timing independent of
	// which one mismatched.
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(cred.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(cred.Password)) == 1
	if !userOK || !passOK {
		return ErrAuthenticationFailed
	}
	return nil
}

// RegisterClient mints and persists a new client credential. The store's
// ErrClientExists and ErrMaxClientsReached propagate unchanged; on any
// failure nothing is committed and the minted credentials are abandoned.
func (s *RegistrationService) RegisterClient(
	ctx context.Context,
	name string,
	description string,
	scopes []string,
) (RegisteredClient, error) {
	l := slogx.FromContext(ctx)

	if len(scopes) == 0 {
		scopes = domain.DefaultScopes
	}

	clientID, err := cryptox.NewClientID()
	if err != nil {
		l.Error("failed to generate client id", "error", err)
		return RegisteredClient{}, err
	}
	clientSecret, err := cryptox.NewClientSecret()
	if err != nil {
		l.Error("failed to generate client secret", "error", err)
		return RegisteredClient{}, err
	}
	secretHash, err := cryptox.HashSecret(clientSecret)
	if err != nil {
		l.Error("failed to hash client secret", "error", err)
		return RegisteredClient{}, err
	}

	record := domain.ClientRecord{
		ClientID:      clientID,
		ClientName:    name,
		SecretHash:    secretHash,
		Description:   description,
		AllowedScopes: scopes,
		CreatedAt:     time.Now().UTC(),
		IsActive:      true,
	}

	if err := s.Store.Clients().SaveClient(ctx, record); err != nil {
		return RegisteredClient{}, err
	}

	l.Info("client registered", "client_id", clientID, "client_name", name)

	return RegisteredClient{
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		ClientName:    name,
		AllowedScopes: scopes,
		CreatedAt:     record.CreatedAt,
		ExpiresAt:     record.ExpiresAt,
	}, nil
}

// ListClients returns a snapshot of all registered clients.
func (s *RegistrationService) ListClients(ctx context.Context) (map[string]domain.ClientRecord, error) {
	return s.Store.Clients().ListClients(ctx)
}
