package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ml-orchestrator/core/models"
)

func TestLoadKeyStoreGeneratesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "api_keys.yaml")

	store, err := LoadKeyStore(path)
	if err != nil {
		t.Fatalf("LoadKeyStore: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default key file not written: %v", err)
	}

	p, err := store.Resolve("tenant_2_sk_20987654321")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.TenantID != "tenant_2" || !p.Has(PermissionWrite) {
		t.Fatalf("unexpected principal %+v", p)
	}

	reloaded, err := LoadKeyStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	admin, err := reloaded.Resolve("master_sk_1234567890")
	if err != nil {
		t.Fatalf("Resolve admin: %v", err)
	}
	if admin.TenantID != MasterTenant || !admin.Has(PermissionRead) {
		t.Fatalf("unexpected admin %+v", admin)
	}
}

func TestResolveErrors(t *testing.T) {
	store := NewKeyStore(map[string]APIKey{
		"orphan": {Key: "orphan_key", Permissions: []string{PermissionRead}},
	})

	tests := []struct {
		name string
		key  string
		want error
	}{
		{"missing", "", models.ErrUnauthorized},
		{"unknown", "nope", models.ErrUnauthorized},
		{"no tenant", "orphan_key", models.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Resolve(tt.key)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Resolve(%q) = %v, want %v", tt.key, err, tt.want)
			}
		})
	}
}

func TestLoadKeyStoreRejectsBadTenant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_keys.yaml")
	content := "bad:\n  key: k1\n  tenant_id: ../etc\n  permissions: [read]\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadKeyStore(path); err == nil {
		t.Fatal("expected invalid tenant error")
	}
}
