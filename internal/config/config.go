// Package config loads and validates the backup client's TOML
// configuration file.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ChunkerKind selects the strategy used to split file content into
// chunks.
type ChunkerKind string

const (
	ChunkerFixed ChunkerKind = "fixed"
	ChunkerCDC   ChunkerKind = "cdc"
)

const defaultChunkSize = 1 << 20 // 1 MiB

// Config is the backup client's configuration.
type Config struct {
	ServerURL                  string      `toml:"server_url"`
	VerifyTLS                  *bool       `toml:"verify_tls_cert"`
	Roots                      []string    `toml:"roots"`
	Log                        string      `toml:"log"`
	ChunkSize                  int         `toml:"chunk_size"`
	ExcludeCacheTagDirectories *bool       `toml:"exclude_cache_tag_directories"`
	ChunkerKind                ChunkerKind `toml:"chunker_kind"`
	KeyFile                    string      `toml:"key_file"`
}

// VerifyTLSCert reports whether the TLS chain must validate, default true.
func (c *Config) VerifyTLSCert() bool {
	if c.VerifyTLS == nil {
		return true
	}
	return *c.VerifyTLS
}

// ExcludeCacheTagDirs reports whether CACHEDIR.TAG-marked directories
// are treated as caches, default true.
func (c *Config) ExcludeCacheTagDirs() bool {
	if c.ExcludeCacheTagDirectories == nil {
		return true
	}
	return *c.ExcludeCacheTagDirectories
}

// EffectiveChunkSize returns ChunkSize, defaulted if unset.
func (c *Config) EffectiveChunkSize() int {
	if c.ChunkSize <= 0 {
		return defaultChunkSize
	}
	return c.ChunkSize
}

// EffectiveChunkerKind returns ChunkerKind, defaulted to fixed since
// every server is required to support at least fixed-size chunks.
func (c *Config) EffectiveChunkerKind() ChunkerKind {
	if c.ChunkerKind == "" {
		return ChunkerFixed
	}
	return c.ChunkerKind
}

// Validate checks the configuration fields that must be caught at
// startup: missing required fields and a non-HTTPS server_url.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("%w: server_url is required", ErrConfigInvalid)
	}
	if strings.HasPrefix(c.ServerURL, "http://") {
		return fmt.Errorf("%w: server_url must use https://, got %q", ErrConfigInvalid, c.ServerURL)
	}
	if !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("%w: server_url must use https://, got %q", ErrConfigInvalid, c.ServerURL)
	}
	if len(c.Roots) == 0 {
		return fmt.Errorf("%w: roots must list at least one directory", ErrConfigInvalid)
	}
	switch c.EffectiveChunkerKind() {
	case ChunkerFixed, ChunkerCDC:
	default:
		return fmt.Errorf("%w: unknown chunker_kind %q", ErrConfigInvalid, c.ChunkerKind)
	}
	return nil
}

// Manager reads and writes Config documents.
type Manager struct{}

// Read decodes a Config from r, rejecting unknown keys so a typo in
// the config file fails loudly instead of being silently ignored.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown key %q", ErrConfigInvalid, undecoded[0].String())
	}
	return &cfg, nil
}

// Write encodes a Config to w.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the given path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config from %s: %w", path, err)
	}
	return cfg, nil
}

// ReadBytesForValidationOnly parses and validates a Config without
// requiring it to live on disk; used by tests and by `obnam config`
// to check a candidate file before adopting it.
func ReadBytesForValidationOnly(data []byte) (*Config, error) {
	m := &Manager{}
	cfg, err := m.Read(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes a new config file at path, refusing to overwrite an
// existing one.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
