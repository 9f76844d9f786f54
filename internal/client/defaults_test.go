package client

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("OBNAM_CONFIG_PATH", "/custom/obnam.toml")
		t.Setenv("OBNAM_KEY_FILE", "/custom/keys.toml")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults.ConfigPath != "/custom/obnam.toml" {
			t.Errorf("ConfigPath = %q, want %q", defaults.ConfigPath, "/custom/obnam.toml")
		}
		if defaults.KeyFile != "/custom/keys.toml" {
			t.Errorf("KeyFile = %q, want %q", defaults.KeyFile, "/custom/keys.toml")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("OBNAM_CONFIG_PATH", "")
		t.Setenv("OBNAM_KEY_FILE", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "obnam.toml")
		if defaults.ConfigPath != wantConfig {
			t.Errorf("ConfigPath = %q, want %q", defaults.ConfigPath, wantConfig)
		}

		wantKey := filepath.Join(homeDir, ".config", "obnam", "keys.toml")
		if defaults.KeyFile != wantKey {
			t.Errorf("KeyFile = %q, want %q", defaults.KeyFile, wantKey)
		}
	})
}
