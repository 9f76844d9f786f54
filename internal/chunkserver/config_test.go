package chunkserver

import (
	"strings"
	"testing"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	const doc = `
address = "0.0.0.0:443"
tls_key = "/etc/obnam/server.key"
tls_cert = "/etc/obnam/server.pem"

[storage]
type = "filesystem"
root = "/srv/obnam/chunks"
`
	cfg, err := ReadConfig(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}
	if cfg.Address != "0.0.0.0:443" {
		t.Errorf("Address = %q, want %q", cfg.Address, "0.0.0.0:443")
	}
	if cfg.Storage.Type != "filesystem" {
		t.Errorf("Storage.Type = %q, want %q", cfg.Storage.Type, "filesystem")
	}
	if cfg.Storage.Root != "/srv/obnam/chunks" {
		t.Errorf("Storage.Root = %q, want %q", cfg.Storage.Root, "/srv/obnam/chunks")
	}
}

func TestReadConfig_DefaultsStorageTypeToFilesystem(t *testing.T) {
	t.Parallel()

	cfg, err := ReadConfig(strings.NewReader(`address = "localhost:9418"`))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}
	if cfg.Storage.Type != "filesystem" {
		t.Errorf("Storage.Type = %q, want %q", cfg.Storage.Type, "filesystem")
	}
}

func TestReadConfig_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := ReadConfig(strings.NewReader(`bogus_key = "value"`))
	if err == nil {
		t.Fatal("ReadConfig() error = nil, want error for unknown field")
	}
}

func TestConfig_NewFilesystemStoreFromConfig(t *testing.T) {
	t.Parallel()

	cfg := &Config{Storage: StorageConfig{Type: "filesystem", Root: t.TempDir()}}
	store, err := cfg.NewFilesystemStoreFromConfig()
	if err != nil {
		t.Fatalf("NewFilesystemStoreFromConfig() error = %v", err)
	}
	defer store.Close()
}

func TestConfig_NewFilesystemStoreFromConfig_MissingRoot(t *testing.T) {
	t.Parallel()

	cfg := &Config{Storage: StorageConfig{Type: "filesystem"}}
	if _, err := cfg.NewFilesystemStoreFromConfig(); err == nil {
		t.Fatal("NewFilesystemStoreFromConfig() error = nil, want error for missing storage.root")
	}
}
