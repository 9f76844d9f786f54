package client

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the paths the `obnam` command surface falls back to
// when a flag isn't given, checking an environment variable first.
type Defaults struct {
	ConfigPath string
	KeyFile    string
}

// GetDefaults returns the default config and key file paths, checking
// environment variables first.
//
// Environment variables:
//   - OBNAM_CONFIG_PATH: config file location (default: ~/.config/obnam.toml)
//   - OBNAM_KEY_FILE: key file location (default: ~/.config/obnam/keys.toml)
func GetDefaults() (Defaults, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Defaults{}, fmt.Errorf("cannot determine home directory: %w", err)
	}

	configPath := os.Getenv("OBNAM_CONFIG_PATH")
	if configPath == "" {
		configPath = filepath.Join(homeDir, ".config", "obnam.toml")
	}

	keyFile := os.Getenv("OBNAM_KEY_FILE")
	if keyFile == "" {
		keyFile = filepath.Join(homeDir, ".config", "obnam", "keys.toml")
	}

	return Defaults{ConfigPath: configPath, KeyFile: keyFile}, nil
}
