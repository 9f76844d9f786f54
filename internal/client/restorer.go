package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"obnam-go/internal/chunkserver"
	"obnam-go/internal/crypto"
	"obnam-go/internal/index"
)

// devIno identifies a source inode for hard-link reconstruction.
type devIno struct {
	dev, ino uint64
}

// Restorer reconstructs a generation at a destination directory.
type Restorer struct {
	transport Transport
	codec     *crypto.Codec
	trustRoot *TrustRootManager
	idgen     IDGenerator
	logger    Logger
}

// NewRestorer builds a Restorer. A nil idgen/logger falls back to
// UUIDGenerator/NopLogger.
func NewRestorer(transport Transport, codec *crypto.Codec, trustRoot *TrustRootManager, idgen IDGenerator, logger Logger) *Restorer {
	if idgen == nil {
		idgen = UUIDGenerator{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Restorer{transport: transport, codec: codec, trustRoot: trustRoot, idgen: idgen, logger: logger}
}

// RestoreResult is the outcome of a Restore call.
type RestoreResult struct {
	GenerationID  chunkserver.ID
	FilesRestored int64
	Warnings      []Warning
}

// Restore resolves label (an alias like "latest" or an explicit
// generation id) and reconstructs it under destDir.
func (r *Restorer) Restore(ctx context.Context, label, destDir string) (*RestoreResult, error) {
	genID, err := r.trustRoot.Resolve(label)
	if err != nil {
		return nil, err
	}

	gen, err := r.fetchGeneration(genID)
	if err != nil {
		return nil, err
	}
	if !index.CurrentSchemaVersion.IsCompatibleWith(gen.SchemaVersion) {
		return nil, fmt.Errorf("%w: generation %s was written at schema %s, this build supports up to %s",
			ErrSchemaUnsupported, genID, gen.SchemaVersion, index.CurrentSchemaVersion)
	}

	dbPath, err := r.reassembleIndex(gen)
	if err != nil {
		return nil, err
	}
	defer os.Remove(dbPath)

	db, err := index.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening reassembled index: %w", err)
	}
	defer db.Close()

	entries, err := db.AllFileEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing file entries: %w", err)
	}

	result := &RestoreResult{GenerationID: genID}
	var dirs, files, symlinks, specials []index.FileEntry
	for _, e := range entries {
		switch e.Kind {
		case index.KindDirectory:
			dirs = append(dirs, e)
		case index.KindRegular:
			files = append(files, e)
		case index.KindSymlink:
			symlinks = append(symlinks, e)
		default:
			specials = append(specials, e)
		}
	}

	for _, e := range dirs {
		if err := os.MkdirAll(destPath(destDir, e.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", e.Path, err)
		}
	}

	linked := make(map[devIno]string)
	for _, e := range files {
		if err := r.restoreRegularFile(e, destDir, linked, result); err != nil {
			if errors.Is(err, ErrIntegrityFailure) || errors.Is(err, ErrSchemaUnsupported) {
				return nil, fmt.Errorf("restoring %s: %w", e.Path, err)
			}
			result.Warnings = append(result.Warnings, Warning{Path: e.Path, Err: err})
			continue
		}
		result.FilesRestored++
	}

	for _, e := range symlinks {
		if err := r.restoreSymlink(e, destDir); err != nil {
			result.Warnings = append(result.Warnings, Warning{Path: e.Path, Err: err})
			continue
		}
		result.FilesRestored++
	}

	for _, e := range specials {
		if err := r.restoreSpecial(e, destDir); err != nil {
			result.Warnings = append(result.Warnings, Warning{Path: e.Path, Err: err})
			continue
		}
		result.FilesRestored++
	}

	// Directory metadata is applied last, deepest first, so a
	// restrictive stored mode never blocks creating a still-pending
	// descendant.
	for i := len(dirs) - 1; i >= 0; i-- {
		e := dirs[i]
		path := destPath(destDir, e.Path)
		if err := os.Chmod(path, fs.FileMode(e.Mode)); err != nil {
			result.Warnings = append(result.Warnings, Warning{Path: e.Path, Err: err})
			continue
		}
		mtime := time.Unix(e.MTimeSec, e.MTimeNsec)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			result.Warnings = append(result.Warnings, Warning{Path: e.Path, Err: err})
		}
	}

	return result, nil
}

func (r *Restorer) fetchGeneration(id chunkserver.ID) (GenerationPlaintext, error) {
	_, body, err := r.transport.Get(id)
	if err != nil {
		return GenerationPlaintext{}, fmt.Errorf("fetching generation %s: %w", id, err)
	}
	defer body.Close()

	envelope, err := io.ReadAll(body)
	if err != nil {
		return GenerationPlaintext{}, fmt.Errorf("reading generation %s: %w", id, err)
	}
	plaintext, err := r.codec.Open(envelope, []byte(generationKind))
	if err != nil {
		if errors.Is(err, crypto.ErrUnsupportedVersion) {
			return GenerationPlaintext{}, fmt.Errorf("%w: generation %s: %v", ErrSchemaUnsupported, id, err)
		}
		return GenerationPlaintext{}, fmt.Errorf("%w: decrypting generation %s: %v", ErrIntegrityFailure, id, err)
	}

	var gen GenerationPlaintext
	if err := json.Unmarshal(plaintext, &gen); err != nil {
		return GenerationPlaintext{}, fmt.Errorf("parsing generation %s: %w", id, err)
	}
	return gen, nil
}

// reassembleIndex downloads, decrypts, and concatenates a generation's
// IndexPart chunks into a fresh local database file.
func (r *Restorer) reassembleIndex(gen GenerationPlaintext) (string, error) {
	dbPath := filepath.Join(os.TempDir(), "obnam-restore-index-"+r.idgen.New()+".db")
	out, err := os.Create(dbPath)
	if err != nil {
		return "", fmt.Errorf("creating scratch index file: %w", err)
	}

	for _, partID := range gen.IndexParts {
		_, body, err := r.transport.Get(chunkserver.ID(partID))
		if err != nil {
			out.Close()
			os.Remove(dbPath)
			return "", fmt.Errorf("fetching index part %s: %w", partID, err)
		}
		envelope, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			out.Close()
			os.Remove(dbPath)
			return "", fmt.Errorf("reading index part %s: %w", partID, err)
		}
		part, err := r.codec.Open(envelope, []byte(indexPartKind))
		if err != nil {
			out.Close()
			os.Remove(dbPath)
			if errors.Is(err, crypto.ErrUnsupportedVersion) {
				return "", fmt.Errorf("%w: index part %s: %v", ErrSchemaUnsupported, partID, err)
			}
			return "", fmt.Errorf("%w: decrypting index part %s: %v", ErrIntegrityFailure, partID, err)
		}
		if _, err := out.Write(part); err != nil {
			out.Close()
			os.Remove(dbPath)
			return "", fmt.Errorf("assembling index: %w", err)
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(dbPath)
		return "", fmt.Errorf("closing scratch index file: %w", err)
	}
	return dbPath, nil
}

// restoreRegularFile writes a regular file's content, hard-linking to
// an already-restored path when the source shares its (dev, ino) with
// one.
func (r *Restorer) restoreRegularFile(e index.FileEntry, destDir string, linked map[devIno]string, result *RestoreResult) error {
	path := destPath(destDir, e.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	if e.Nlink > 1 {
		key := devIno{e.Dev, e.Ino}
		if original, ok := linked[key]; ok {
			if err := os.Link(original, path); err == nil {
				return nil
			}
			result.Warnings = append(result.Warnings, Warning{
				Path: e.Path,
				Err:  fmt.Errorf("hard-linking to %s failed, restoring independent copy", original),
			})
		} else {
			linked[key] = path
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	for _, chunkID := range e.ChunkIDs {
		if err := r.writeDataChunk(f, chunkserver.ID(chunkID)); err != nil {
			f.Close()
			os.Remove(path)
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Chmod(path, fs.FileMode(e.Mode)); err != nil {
		return err
	}
	mtime := time.Unix(e.MTimeSec, e.MTimeNsec)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		return err
	}
	if os.Geteuid() == 0 {
		_ = os.Chown(path, int(e.UID), int(e.GID))
	}
	return nil
}

func (r *Restorer) writeDataChunk(f *os.File, id chunkserver.ID) error {
	meta, body, err := r.transport.Get(id)
	if err != nil {
		if chunkserver.IsNotFound(err) {
			return fmt.Errorf("%w: chunk %s referenced by index is missing from the server", ErrIntegrityFailure, id)
		}
		return fmt.Errorf("fetching chunk %s: %w", id, err)
	}
	defer body.Close()

	envelope, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("reading chunk %s: %w", id, err)
	}
	plaintext, err := r.codec.Open(envelope, []byte(dataKind))
	if err != nil {
		if errors.Is(err, crypto.ErrUnsupportedVersion) {
			return fmt.Errorf("%w: chunk %s: %v", ErrSchemaUnsupported, id, err)
		}
		return fmt.Errorf("%w: decrypting chunk %s: %v", ErrIntegrityFailure, id, err)
	}
	if got := Label(plaintext); got != meta.Label {
		return fmt.Errorf("%w: chunk %s content hash %s does not match its label %s", ErrIntegrityFailure, id, got, meta.Label)
	}
	if _, err := f.Write(plaintext); err != nil {
		return fmt.Errorf("writing chunk %s: %w", id, err)
	}
	return nil
}

func (r *Restorer) restoreSymlink(e index.FileEntry, destDir string) error {
	path := destPath(destDir, e.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.Symlink(e.SymlinkTarget, path); err != nil {
		return err
	}
	if err := lutimes(path, e.MTimeSec, e.MTimeNsec); err != nil {
		r.logger.Warn("could not set symlink timestamp", "path", e.Path, "error", err)
	}
	return nil
}

func (r *Restorer) restoreSpecial(e index.FileEntry, destDir string) error {
	path := destPath(destDir, e.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var err error
	switch e.Kind {
	case index.KindFIFO:
		err = mkfifo(path, e.Mode)
	case index.KindSocket:
		err = mksocket(path, e.Mode)
	default:
		return fmt.Errorf("unsupported entry kind %q", e.Kind)
	}
	if err != nil {
		return err
	}
	return os.Chtimes(path, time.Unix(e.MTimeSec, e.MTimeNsec), time.Unix(e.MTimeSec, e.MTimeNsec))
}

func destPath(destDir, entryPath string) string {
	return filepath.Join(destDir, filepath.FromSlash(entryPath))
}
