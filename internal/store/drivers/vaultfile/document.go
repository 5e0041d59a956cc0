package vaultfile

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/buildstream-io/buildstream/internal/domain"
)

// document is the decrypted structure of a vault file. The oauth_clients
// mapping is keyed by client_id; every key equals the ClientID of its value.
// The admin registration credential may live in the same file or in a
// sibling vault file, so both keys are optional.
type document struct {
	OAuthClients map[string]domain.ClientRecord `yaml:"oauth_clients,omitempty"`
	AuthConfig   *domain.AdminCredential        `yaml:"auth_config,omitempty"`
}

func emptyDocument() document {
	return document{OAuthClients: make(map[string]domain.ClientRecord)}
}

func parseDocument(data []byte) (document, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("vaultfile: invalid vault content format: %w", err)
	}
	if doc.OAuthClients == nil {
		doc.OAuthClients = make(map[string]domain.ClientRecord)
	}
	return doc, nil
}

func (d document) encode() ([]byte, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("vaultfile: encoding vault document: %w", err)
	}
	return out, nil
}

// activeCount returns the number of records with is_active set.
func (d document) activeCount() int {
	n := 0
	for _, rec := range d.OAuthClients {
		if rec.IsActive {
			n++
		}
	}
	return n
}

// nameExists reports whether any record, active or not, uses name.
func (d document) nameExists(name string) bool {
	for _, rec := range d.OAuthClients {
		if rec.ClientName == name {
			return true
		}
	}
	return false
}
