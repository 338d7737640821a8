// Package auth resolves API keys to tenants.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"ml-orchestrator/core/models"

	"gopkg.in/yaml.v3"
)

// MasterTenant is the tenant an admin key without its own tenant acts as
const MasterTenant = "master"

// Permission names carried by a key
const (
	PermissionRead  = "read"
	PermissionWrite = "write"
	PermissionAdmin = "admin"
)

// APIKey is one entry of the key file
type APIKey struct {
	Key         string   `yaml:"key"`
	TenantID    string   `yaml:"tenant_id,omitempty"`
	Permissions []string `yaml:"permissions"`
}

// Principal is the caller identity resolved from a key
type Principal struct {
	Name        string
	TenantID    string
	Permissions []string
}

// Has reports whether the principal carries perm. Admin implies everything.
func (p Principal) Has(perm string) bool {
	for _, have := range p.Permissions {
		if have == perm || have == PermissionAdmin {
			return true
		}
	}
	return false
}

// KeyStore holds the loaded API keys
type KeyStore struct {
	keys map[string]APIKey
}

// NewKeyStore builds a store from in-memory keys
func NewKeyStore(keys map[string]APIKey) *KeyStore {
	return &KeyStore{keys: keys}
}

// DefaultKeys returns the master admin key and four tenant keys
func DefaultKeys() map[string]APIKey {
	keys := map[string]APIKey{
		"master_key": {
			Key:         "master_sk_1234567890",
			Permissions: []string{PermissionAdmin},
		},
	}
	for i := 1; i <= 4; i++ {
		keys[fmt.Sprintf("tenant_%d_key", i)] = APIKey{
			Key:         fmt.Sprintf("tenant_%d_sk_%d0987654321", i, i),
			TenantID:    fmt.Sprintf("tenant_%d", i),
			Permissions: []string{PermissionRead, PermissionWrite},
		}
	}
	return keys
}

// LoadKeyStore reads the YAML key file at path, writing the default keys there first when it does not exist
func LoadKeyStore(path string) (*KeyStore, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		keys := DefaultKeys()
		if err := writeKeys(path, keys); err != nil {
			return nil, err
		}
		return NewKeyStore(keys), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read api keys: %w", err)
	}

	keys := map[string]APIKey{}
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parse api keys %s: %w", path, err)
	}
	for name, k := range keys {
		if k.Key == "" {
			return nil, fmt.Errorf("api key %q has an empty key", name)
		}
		if k.TenantID != "" {
			if err := models.ValidateTenantID(k.TenantID); err != nil {
				return nil, fmt.Errorf("api key %q: %w", name, err)
			}
		}
	}
	return NewKeyStore(keys), nil
}

func writeKeys(path string, keys map[string]APIKey) error {
	data, err := yaml.Marshal(keys)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write default api keys: %w", err)
	}
	return nil
}

// Resolve maps a presented key to its principal.
// An empty or unknown key is ErrUnauthorized; a non-admin key without a tenant is ErrForbidden.
func (s *KeyStore) Resolve(presented string) (Principal, error) {
	if presented == "" {
		return Principal{}, fmt.Errorf("%w: API key required", models.ErrUnauthorized)
	}

	names := make([]string, 0, len(s.keys))
	for name := range s.keys {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		k := s.keys[name]
		if subtle.ConstantTimeCompare([]byte(k.Key), []byte(presented)) != 1 {
			continue
		}
		p := Principal{Name: name, TenantID: k.TenantID, Permissions: k.Permissions}
		if p.Has(PermissionAdmin) {
			if p.TenantID == "" {
				p.TenantID = MasterTenant
			}
			return p, nil
		}
		if p.TenantID == "" {
			return Principal{}, fmt.Errorf("%w: API key not associated with a tenant", models.ErrForbidden)
		}
		return p, nil
	}
	return Principal{}, fmt.Errorf("%w: invalid API key", models.ErrUnauthorized)
}
