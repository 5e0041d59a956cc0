// Package vaultfile implements the credential store over a single encrypted
// vault file. Every write runs a full read-modify-write cycle under an
// exclusive cross-process file lock: decrypt the current document, re-check
// invariants against that fresh state, mutate in memory, re-encrypt, and
// atomically replace the file. Without the lock two concurrent registrations
// could both pass a stale capacity check and the last writer would silently
// drop the other's record.
package vaultfile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buildstream-io/buildstream/internal/domain"
	"github.com/buildstream-io/buildstream/internal/store"
	"github.com/buildstream-io/buildstream/pkg/lockx"
	"github.com/buildstream-io/buildstream/pkg/slogx"
	"github.com/buildstream-io/buildstream/pkg/vaultx"
)

// DefaultLockTimeout bounds the wait for the vault file lock.
const DefaultLockTimeout = 10 * time.Second

// Config wires a Store to its codec and vault file paths.
type Config struct {
	// Codec encrypts and decrypts vault files.
	Codec vaultx.Codec

	// ClientsPath is the vault file holding the oauth_clients document.
	ClientsPath string

	// AuthConfigPath is the vault file holding the admin registration
	// credential. May equal ClientsPath.
	AuthConfigPath string

	// MaxActiveClients caps records with is_active true. Zero means 1.
	MaxActiveClients int

	// LockTimeout bounds the wait for the exclusive vault lock.
	// Zero means DefaultLockTimeout.
	LockTimeout time.Duration
}

// Store implements store.Store over encrypted vault files.
type Store struct {
	codec            vaultx.Codec
	clientsPath      string
	authConfigPath   string
	maxActiveClients int
	lockTimeout      time.Duration
}

func NewStore(cfg Config) *Store {
	s := &Store{
		codec:            cfg.Codec,
		clientsPath:      cfg.ClientsPath,
		authConfigPath:   cfg.AuthConfigPath,
		maxActiveClients: cfg.MaxActiveClients,
		lockTimeout:      cfg.LockTimeout,
	}
	if s.maxActiveClients <= 0 {
		s.maxActiveClients = 1
	}
	if s.lockTimeout <= 0 {
		s.lockTimeout = DefaultLockTimeout
	}
	if s.authConfigPath == "" {
		s.authConfigPath = s.clientsPath
	}
	return s
}

func (s *Store) Clients() store.Clients { return &clientsRepo{s} }
func (s *Store) Admin() store.Admin     { return &adminRepo{s} }

// Ping verifies the vault is usable: passphrase material present and the
// clients document, if it exists, decryptable. A missing vault file is the
// valid empty-store state.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.codec.Decrypt(ctx, s.clientsPath)
	if err != nil && !errors.Is(err, vaultx.ErrNotFound) {
		return err
	}
	return nil
}

// readClients decrypts and parses the clients document. A missing vault
// file yields an empty document.
func (s *Store) readClients(ctx context.Context) (document, error) {
	data, err := s.codec.Decrypt(ctx, s.clientsPath)
	if err != nil {
		if errors.Is(err, vaultx.ErrNotFound) {
			return emptyDocument(), nil
		}
		return document{}, err
	}
	return parseDocument(data)
}

// withVaultLock runs fn holding the exclusive cross-process lock for the
// clients vault file. The lock spans the full decrypt-mutate-encrypt-replace
// cycle and is released only after the encrypted file has been replaced.
func (s *Store) withVaultLock(ctx context.Context, fn func(doc document) (document, error)) error {
	lock, err := lockx.Acquire(ctx, s.clientsPath+".lock", s.lockTimeout)
	if err != nil {
		if errors.Is(err, lockx.ErrTimeout) {
			return fmt.Errorf("%w: %s", store.ErrLockTimeout, s.clientsPath)
		}
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slogx.FromContext(ctx).Error("failed to release vault lock", "error", err)
		}
	}()

	// State read before the lock was held is stale by definition; fn gets
	// a fresh document.
	doc, err := s.readClients(ctx)
	if err != nil {
		return err
	}

	updated, err := fn(doc)
	if err != nil {
		return err
	}

	encoded, err := updated.encode()
	if err != nil {
		return err
	}
	return s.codec.EncryptAndStore(ctx, s.clientsPath, encoded)
}

type clientsRepo struct {
	s *Store
}

func (r *clientsRepo) ListClients(ctx context.Context) (map[string]domain.ClientRecord, error) {
	doc, err := r.s.readClients(ctx)
	if err != nil {
		return nil, err
	}
	return doc.OAuthClients, nil
}

func (r *clientsRepo) ClientNameExists(ctx context.Context, name string) (bool, error) {
	doc, err := r.s.readClients(ctx)
	if err != nil {
		return false, err
	}
	return doc.nameExists(name), nil
}

func (r *clientsRepo) ActiveClientCount(ctx context.Context) (int, error) {
	doc, err := r.s.readClients(ctx)
	if err != nil {
		return 0, err
	}
	return doc.activeCount(), nil
}

func (r *clientsRepo) SaveClient(ctx context.Context, record domain.ClientRecord) error {
	l := slogx.FromContext(ctx)

	err := r.s.withVaultLock(ctx, func(doc document) (document, error) {
		// Every check runs against the freshly read document.
		if existing, ok := doc.OAuthClients[record.ClientID]; ok && existing.ClientName != record.ClientName {
			// Generated IDs are 128 bits of entropy; a collision here is
			// either a generator fault or an operator mistake.
			return document{}, fmt.Errorf("vaultfile: client id collision: %s", record.ClientID)
		}
		if doc.nameExists(record.ClientName) {
			return document{}, store.ErrClientExists
		}
		if record.IsActive && doc.activeCount() >= r.s.maxActiveClients {
			return document{}, store.ErrMaxClientsReached
		}

		doc.OAuthClients[record.ClientID] = record
		return doc, nil
	})
	if err != nil {
		return err
	}

	l.Info("client saved to vault", "client_id", record.ClientID, "client_name", record.ClientName)
	return nil
}

func (r *clientsRepo) DeactivateClient(ctx context.Context, clientID string) error {
	return r.s.withVaultLock(ctx, func(doc document) (document, error) {
		rec, ok := doc.OAuthClients[clientID]
		if !ok {
			return document{}, fmt.Errorf("%w: client %s", store.ErrNotFound, clientID)
		}
		rec.IsActive = false
		doc.OAuthClients[clientID] = rec
		return doc, nil
	})
}

type adminRepo struct {
	s *Store
}

// Credential reads the admin registration credential from the auth-config
// vault. Absence is misconfiguration, not an empty store.
func (r *adminRepo) Credential(ctx context.Context) (domain.AdminCredential, error) {
	data, err := r.s.codec.Decrypt(ctx, r.s.authConfigPath)
	if err != nil {
		return domain.AdminCredential{}, err
	}

	doc, err := parseDocument(data)
	if err != nil {
		return domain.AdminCredential{}, err
	}
	if doc.AuthConfig == nil || doc.AuthConfig.Username == "" {
		return domain.AdminCredential{}, fmt.Errorf("%w: auth_config missing in %s", store.ErrNotFound, r.s.authConfigPath)
	}
	return *doc.AuthConfig, nil
}

// SetCredential replaces the admin registration credential under the vault
// lock, creating the auth-config vault file if it does not exist yet.
func (r *adminRepo) SetCredential(ctx context.Context, cred domain.AdminCredential) error {
	s := r.s

	lock, err := lockx.Acquire(ctx, s.authConfigPath+".lock", s.lockTimeout)
	if err != nil {
		if errors.Is(err, lockx.ErrTimeout) {
			return fmt.Errorf("%w: %s", store.ErrLockTimeout, s.authConfigPath)
		}
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slogx.FromContext(ctx).Error("failed to release vault lock", "error", err)
		}
	}()

	doc := emptyDocument()
	data, err := s.codec.Decrypt(ctx, s.authConfigPath)
	switch {
	case err == nil:
		if doc, err = parseDocument(data); err != nil {
			return err
		}
	case errors.Is(err, vaultx.ErrNotFound):
		// First run, the init path creates the file.
	default:
		return err
	}

	doc.AuthConfig = &cred
	encoded, err := doc.encode()
	if err != nil {
		return err
	}
	return s.codec.EncryptAndStore(ctx, s.authConfigPath, encoded)
}
