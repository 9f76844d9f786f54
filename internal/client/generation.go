package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"obnam-go/internal/chunkerimpl"
	"obnam-go/internal/chunkserver"
	"obnam-go/internal/config"
	"obnam-go/internal/fswalk"
	"obnam-go/internal/index"
)

// indexPartKind and generationKind are the AEAD associated-data tags
// for the chunk kinds the Generation Builder produces, alongside the
// Uploader's "data" tag for file content.
const (
	dataKind       = "data"
	indexPartKind  = "indexpart"
	generationKind = "generation"
)

// GenerationBuilder walks a set of backup roots, maintains the
// per-run index database, and finalises it into an uploaded
// Generation chunk.
type GenerationBuilder struct {
	uploader *Uploader
	clock    Clock
	idgen    IDGenerator
	logger   Logger
}

// NewGenerationBuilder builds a GenerationBuilder. A nil clock/idgen/
// logger falls back to RealClock/UUIDGenerator/NopLogger.
func NewGenerationBuilder(uploader *Uploader, clock Clock, idgen IDGenerator, logger Logger) *GenerationBuilder {
	if clock == nil {
		clock = RealClock{}
	}
	if idgen == nil {
		idgen = UUIDGenerator{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &GenerationBuilder{uploader: uploader, clock: clock, idgen: idgen, logger: logger}
}

// BuildOptions parameterises a single Build call.
type BuildOptions struct {
	// Roots are the backup roots to walk, in the order given.
	Roots []string

	ChunkSize   int
	ChunkerKind config.ChunkerKind

	// IgnorePatterns are glob patterns applied to every root in
	// addition to whatever that root's own .obnamignore file
	// contributes.
	IgnorePatterns             []string
	ExcludeCacheTagDirectories bool
	// PreviousCacheTags holds root-labelled tag paths (see the root
	// namespacing described on Build) already known from the previous
	// generation.
	PreviousCacheTags map[string]bool

	// Previous is the previous generation's index database, used for
	// the incremental optimisation. Nil for a first backup.
	Previous *index.DB
}

// Result is the outcome of building one generation.
type Result struct {
	GenerationID chunkserver.ID
	Counters     Counters
	Warnings     []Warning
	NewCacheTags []string
}

// Build walks every configured root, records each entry in a fresh
// index database, and finalises that database into an uploaded
// Generation chunk. Roots are namespaced by their base name in the
// index (root "live" produces entries under "live/..."), so a restore
// into an empty directory reproduces each root as a top-level
// subdirectory of the same name.
func (b *GenerationBuilder) Build(ctx context.Context, opts BuildOptions) (*Result, error) {
	dbPath := filepath.Join(os.TempDir(), "obnam-index-"+b.idgen.New()+".db")
	db, err := index.Create(dbPath)
	if err != nil {
		return nil, fmt.Errorf("creating index database: %w", err)
	}
	defer os.Remove(dbPath)
	defer db.Close()

	result := &Result{}

	for _, root := range opts.Roots {
		if err := b.walkRoot(ctx, db, root, opts, result); err != nil {
			return nil, err
		}
	}

	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("closing index database: %w", err)
	}

	indexParts, err := b.uploadIndexDB(dbPath, opts, &result.Counters)
	if err != nil {
		return nil, fmt.Errorf("uploading index database: %w", err)
	}

	genID, err := b.uploadGeneration(indexParts)
	if err != nil {
		return nil, fmt.Errorf("uploading generation chunk: %w", err)
	}
	result.GenerationID = genID

	return result, nil
}

func (b *GenerationBuilder) walkRoot(ctx context.Context, db *index.DB, root string, opts BuildOptions, result *Result) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootMissing, root)
	}

	rootLabel := filepath.Base(filepath.Clean(root))

	localPatterns, err := fswalk.ParseIgnoreFile(filepath.Join(root, ".obnamignore"))
	if err != nil {
		return fmt.Errorf("reading %s ignore file: %w", root, err)
	}
	patterns := append(append([]string{}, opts.IgnorePatterns...), localPatterns...)

	walkRes, err := fswalk.Walk(root, fswalk.Options{
		Ignore:                     fswalk.NewIgnoreMatcher(patterns),
		ExcludeCacheTagDirectories: opts.ExcludeCacheTagDirectories,
		PreviousCacheTags:          unnamespacedTags(opts.PreviousCacheTags, rootLabel),
	})
	if err != nil {
		return fmt.Errorf("walking root %s: %w", root, err)
	}

	for _, w := range walkRes.Warnings {
		result.Warnings = append(result.Warnings, Warning{Path: w.Path, Err: w.Err})
	}
	for _, tag := range walkRes.NewCacheTags {
		result.NewCacheTags = append(result.NewCacheTags, path.Join(rootLabel, tag))
	}

	result.Counters.FilesDiscovered += int64(len(walkRes.Entries))

	for _, entry := range walkRes.Entries {
		fe, err := fswalk.Describe(entry)
		if err != nil {
			result.Warnings = append(result.Warnings, Warning{Path: entry.AbsPath, Err: err})
			continue
		}
		fe.Path = path.Join(rootLabel, fe.Path)

		if fe.Kind == index.KindRegular {
			if err := b.fillChunks(ctx, db, entry.AbsPath, &fe, opts, result); err != nil {
				result.Warnings = append(result.Warnings, Warning{Path: entry.AbsPath, Err: err})
				continue
			}
		}

		if err := db.InsertFileEntry(ctx, fe); err != nil {
			return fmt.Errorf("recording %s: %w", fe.Path, err)
		}
	}
	return nil
}

// fillChunks decides whether fe's content is unchanged from the
// previous generation's entry at the same path; if so its chunk-id
// list is copied verbatim, otherwise the file is read, chunked, and
// uploaded afresh.
func (b *GenerationBuilder) fillChunks(ctx context.Context, db *index.DB, absPath string, fe *index.FileEntry, opts BuildOptions, result *Result) error {
	if opts.Previous != nil {
		prev, err := opts.Previous.FileEntryByPath(ctx, fe.Path)
		if err != nil {
			return err
		}
		if prev != nil && prev.Identity() == fe.Identity() {
			fe.ChunkIDs = prev.ChunkIDs
			b.logger.Debug("unchanged, reusing chunk list", "path", fe.Path)
			return nil
		}
	}

	f, err := os.Open(absPath)
	if err != nil {
		return err
	}
	defer f.Close()

	chunker, err := newChunker(opts.ChunkerKind, f, opts.ChunkSize)
	if err != nil {
		return err
	}
	chunks, err := readAllChunks(chunker)
	if err != nil {
		return err
	}

	ids, err := b.uploader.UploadChunks(dataKind, chunks, &result.Counters)
	if err != nil {
		return err
	}
	fe.ChunkIDs = idsToStrings(ids)
	result.Counters.FilesBackedUp++
	return nil
}

// uploadIndexDB chunks and uploads the finalised index database file,
// returning the ordered list of resulting IndexPart chunk ids.
func (b *GenerationBuilder) uploadIndexDB(dbPath string, opts BuildOptions, counters *Counters) ([]string, error) {
	f, err := os.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	chunker, err := newChunker(opts.ChunkerKind, f, opts.ChunkSize)
	if err != nil {
		return nil, err
	}
	chunks, err := readAllChunks(chunker)
	if err != nil {
		return nil, err
	}

	ids, err := b.uploader.UploadChunks(indexPartKind, chunks, counters)
	if err != nil {
		return nil, err
	}
	return idsToStrings(ids), nil
}

func (b *GenerationBuilder) uploadGeneration(indexParts []string) (chunkserver.ID, error) {
	ended := b.clock.Now().UTC().Format("2006-01-02T15:04:05Z")
	gen := GenerationPlaintext{
		SchemaVersion: index.CurrentSchemaVersion,
		IndexParts:    indexParts,
		Ended:         &ended,
	}
	data, err := json.Marshal(gen)
	if err != nil {
		return "", fmt.Errorf("encoding generation: %w", err)
	}

	ids, err := b.uploader.UploadChunks(generationKind, []chunkerimpl.Chunk{{Data: data}}, nil)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func idsToStrings(ids []chunkserver.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// unnamespacedTags strips a root's label prefix back off a
// caller-supplied PreviousCacheTags set so fswalk.Walk, which knows
// nothing about root namespacing, can match against its own
// root-relative tag paths.
func unnamespacedTags(tags map[string]bool, rootLabel string) map[string]bool {
	if len(tags) == 0 {
		return nil
	}
	prefix := rootLabel + "/"
	out := make(map[string]bool, len(tags))
	for tag := range tags {
		if rel, ok := strings.CutPrefix(tag, prefix); ok {
			out[rel] = true
		}
	}
	return out
}
