package client

import (
	"context"
	"fmt"
	"os"
	"path"

	"obnam-go/internal/chunkserver"
	"obnam-go/internal/config"
	"obnam-go/internal/crypto"
	"obnam-go/internal/index"
)

// Engine wires together every collaborator the client subcommands
// need — index database, chunk transport, uploader, generation
// builder, trust root, and restorer — behind a single service object.
type Engine struct {
	Config    *config.Config
	Server    *ServerClient
	Codec     *crypto.Codec
	Uploader  *Uploader
	Builder   *GenerationBuilder
	TrustRoot *TrustRootManager
	Restorer  *Restorer
	Logger    Logger
}

// NewEngine loads the key file referenced by cfg.KeyFile and wires up
// every collaborator against cfg.ServerURL. cfg must already have
// passed Validate.
func NewEngine(cfg *config.Config, logger Logger) (*Engine, error) {
	if logger == nil {
		logger = NewNopLogger()
	}

	km, err := crypto.Load(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading key file: %w", err)
	}
	codec, err := crypto.NewCodec(km)
	if err != nil {
		return nil, fmt.Errorf("initializing codec: %w", err)
	}

	server := NewServerClient(cfg.ServerURL, cfg.VerifyTLSCert())
	uploader := NewUploader(server, codec, 0, logger)
	trustRoot := NewTrustRootManager(server, codec)

	return &Engine{
		Config:    cfg,
		Server:    server,
		Codec:     codec,
		Uploader:  uploader,
		Builder:   NewGenerationBuilder(uploader, RealClock{}, UUIDGenerator{}, logger),
		TrustRoot: trustRoot,
		Restorer:  NewRestorer(server, codec, trustRoot, UUIDGenerator{}, logger),
		Logger:    logger,
	}, nil
}

// BackupResult is returned by Backup: the finalised generation plus
// enough context for the `backup` command to decide its exit code.
type BackupResult struct {
	GenerationID string
	Counters     Counters
	Warnings     []Warning
	NewCacheTags []string
}

// Backup runs one full backup pass over cfg.Roots: walk, chunk,
// upload, finalise the generation, and update the TrustRoot. The
// previous generation's index database, if any, is downloaded first
// so the Generation Builder's incremental optimisation has something
// to compare against, and so CACHEDIR.TAG files it already records
// are not reported as newly discovered.
func (e *Engine) Backup(ctx context.Context) (*BackupResult, error) {
	for _, root := range e.Config.Roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrRootMissing, root)
		}
	}

	previous, cleanup, err := e.previousIndex(ctx)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	var previousTags map[string]bool
	if previous != nil {
		entries, err := previous.AllFileEntries(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing previous generation: %w", err)
		}
		previousTags = make(map[string]bool)
		for _, fe := range entries {
			if path.Base(fe.Path) == "CACHEDIR.TAG" {
				previousTags[fe.Path] = true
			}
		}
	}

	result, err := e.Builder.Build(ctx, BuildOptions{
		Roots:                      e.Config.Roots,
		ChunkSize:                  e.Config.EffectiveChunkSize(),
		ChunkerKind:                e.Config.EffectiveChunkerKind(),
		IgnorePatterns:             nil,
		ExcludeCacheTagDirectories: e.Config.ExcludeCacheTagDirs(),
		PreviousCacheTags:          previousTags,
		Previous:                   previous,
	})
	if err != nil {
		return nil, err
	}

	if _, err := e.TrustRoot.Append(result.GenerationID); err != nil {
		return nil, fmt.Errorf("updating trust root: %w", err)
	}

	return &BackupResult{
		GenerationID: string(result.GenerationID),
		Counters:     result.Counters,
		Warnings:     result.Warnings,
		NewCacheTags: result.NewCacheTags,
	}, nil
}

// previousIndex downloads and reassembles the previous generation's
// index database, if a TrustRoot already exists, for use as the
// incremental optimisation's reference. The returned cleanup func
// removes the reassembled scratch file; callers must invoke it once
// done.
func (e *Engine) previousIndex(ctx context.Context) (*index.DB, func(), error) {
	current, err := e.TrustRoot.Current()
	if err != nil {
		return nil, nil, err
	}
	if len(current.Plaintext.Generations) == 0 {
		return nil, nil, nil
	}

	lastID := current.Plaintext.Generations[len(current.Plaintext.Generations)-1]
	gen, err := e.Restorer.fetchGeneration(chunkserver.ID(lastID))
	if err != nil {
		return nil, nil, err
	}
	dbPath, err := e.Restorer.reassembleIndex(gen)
	if err != nil {
		return nil, nil, err
	}

	db, err := index.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening previous index: %w", err)
	}
	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return db, cleanup, nil
}

// Resolve implements the `resolve` command.
func (e *Engine) Resolve(alias string) (string, error) {
	id, err := e.TrustRoot.Resolve(alias)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// Restore implements the `restore` command.
func (e *Engine) Restore(ctx context.Context, label, destDir string) (*RestoreResult, error) {
	return e.Restorer.Restore(ctx, label, destDir)
}

// ListGenerations implements the `list` command: every generation id
// currently referenced by the TrustRoot, oldest first.
func (e *Engine) ListGenerations() ([]string, error) {
	current, err := e.TrustRoot.Current()
	if err != nil {
		return nil, err
	}
	return current.Plaintext.Generations, nil
}

// Inspect implements the `inspect`/`gen-info` commands: the decrypted
// Generation plaintext for a resolved label.
func (e *Engine) Inspect(label string) (GenerationPlaintext, error) {
	id, err := e.TrustRoot.Resolve(label)
	if err != nil {
		return GenerationPlaintext{}, err
	}
	return e.Restorer.fetchGeneration(id)
}

// ListFiles implements the `list-files` command: every path recorded
// in a generation's index, in the order the index database stores
// them.
func (e *Engine) ListFiles(ctx context.Context, label string) ([]index.FileEntry, error) {
	id, err := e.TrustRoot.Resolve(label)
	if err != nil {
		return nil, err
	}
	gen, err := e.Restorer.fetchGeneration(id)
	if err != nil {
		return nil, err
	}
	dbPath, err := e.Restorer.reassembleIndex(gen)
	if err != nil {
		return nil, err
	}
	defer os.Remove(dbPath)

	db, err := index.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening reassembled index: %w", err)
	}
	defer db.Close()

	return db.AllFileEntries(ctx)
}
