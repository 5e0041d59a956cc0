package store

import (
	"context"
	"errors"

	"github.com/buildstream-io/buildstream/internal/domain"
)

var (
	// ErrClientExists reports a registration attempt reusing an existing
	// client name. Names block reuse even for deactivated records, since
	// they are human-facing identity.
	ErrClientExists = errors.New("store: client name already registered")

	// ErrMaxClientsReached reports that the active-client capacity is full.
	ErrMaxClientsReached = errors.New("store: maximum number of active clients reached")

	// ErrLockTimeout reports contention on the vault file lock. Retryable.
	ErrLockTimeout = errors.New("store: timed out waiting for vault lock")

	// ErrNotFound reports a missing record or document.
	ErrNotFound = errors.New("store: not found")
)

// Store is the root data access interface over the encrypted vault files.
// The concrete driver (vaultfile) serializes all writers across processes.
type Store interface {
	Clients() Clients
	Admin() Admin

	// Ping verifies the store is usable: passphrase material present and
	// the vault document (if any) decryptable.
	Ping(ctx context.Context) error
}

// Clients is the credential store for registered machine clients.
type Clients interface {
	// ListClients returns a point-in-time snapshot of all records keyed by
	// client_id. A missing vault file is a valid empty store. The snapshot
	// is taken without the vault lock and must not feed a write decision.
	ListClients(ctx context.Context) (map[string]domain.ClientRecord, error)

	// ClientNameExists reports whether any record, active or not, carries
	// the name.
	ClientNameExists(ctx context.Context, name string) (bool, error)

	// ActiveClientCount returns the number of records with is_active true.
	ActiveClientCount(ctx context.Context) (int, error)

	// SaveClient inserts the record under an exclusive cross-process lock,
	// re-checking capacity and name uniqueness against the freshly read
	// document. Fails with ErrClientExists, ErrMaxClientsReached, or
	// ErrLockTimeout.
	SaveClient(ctx context.Context, record domain.ClientRecord) error

	// DeactivateClient clears is_active on a record, freeing capacity
	// while keeping the name reserved. Fails with ErrNotFound for an
	// unknown client_id.
	DeactivateClient(ctx context.Context, clientID string) error
}

// Admin manages the registration gate credential.
type Admin interface {
	// Credential returns the admin registration credential. A missing or
	// undecryptable auth-config document is an error here, never an empty
	// credential: absence means misconfiguration, and an empty credential
	// must not accidentally authenticate anyone.
	Credential(ctx context.Context) (domain.AdminCredential, error)

	// SetCredential writes the admin registration credential, creating the
	// auth-config vault file if needed. Existing client records in a shared
	// vault file are preserved.
	SetCredential(ctx context.Context, cred domain.AdminCredential) error
}
