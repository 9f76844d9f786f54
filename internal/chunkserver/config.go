package chunkserver

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the chunk server's on-disk TOML configuration.
//
//	address = "0.0.0.0:443"
//	tls_key = "/etc/obnam/server.key"
//	tls_cert = "/etc/obnam/server.pem"
//
//	[storage]
//	type = "filesystem"   # or "s3"
//	root = "/srv/obnam/chunks"
//
//	# used instead of root when type = "s3"
//	s3_bucket = "obnam-chunks"
//	s3_prefix = "prod"
type Config struct {
	Address string        `toml:"address"`
	TLSKey  string        `toml:"tls_key"`
	TLSCert string        `toml:"tls_cert"`
	Storage StorageConfig `toml:"storage"`
}

// StorageConfig selects and configures the chunk server's Store
// backend. Type is a tagged union discriminator selecting which of the
// sibling fields apply.
type StorageConfig struct {
	Type string `toml:"type"` // "filesystem" (default) or "s3"

	// Root is used when Type == "filesystem".
	Root string `toml:"root,omitempty"`

	// S3 fields are used when Type == "s3".
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3IndexPath string `toml:"s3_index_path,omitempty"`
}

// ReadConfig decodes a Config from r. Unknown keys are rejected: a
// misspelled config key should fail loudly at startup rather than
// silently doing nothing.
func ReadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("decoding server config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decoding server config: unknown key %q", undecoded[0].String())
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "filesystem"
	}
	return &cfg, nil
}

// ReadConfigFile reads and decodes a Config from a file path.
func ReadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening server config: %w", err)
	}
	defer f.Close()

	cfg, err := ReadConfig(f)
	if err != nil {
		return nil, fmt.Errorf("reading server config from %s: %w", path, err)
	}
	return cfg, nil
}

// NewFilesystemStoreFromConfig builds the filesystem Store described
// by cfg.Storage. S3 storage is constructed directly by
// cmd/obnam-server instead, since it needs an already-built *s3.Client
// (credential resolution is an application-level concern this package
// does not own).
func (cfg *Config) NewFilesystemStoreFromConfig() (Store, error) {
	if cfg.Storage.Root == "" {
		return nil, fmt.Errorf("storage.root must be set for filesystem storage")
	}
	return NewFilesystemStore(cfg.Storage.Root)
}
