package chunkserver

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
)

// FilesystemStore is the default Store backend. It lays chunks out as:
//
//	<root>/
//	  blobs/
//	    <id>          (raw encrypted chunk body, exactly as uploaded)
//	    <id>.meta     (JSON-encoded Meta)
//	  index.json      (label -> ids, see labelIndex)
//
// The two-file-per-chunk layout (grounded on FileSystemVault's
// content/metadata split) keeps the blob itself byte-for-byte what the
// client uploaded, so a client-side integrity check against the
// original ciphertext never has to account for a metadata wrapper.
type FilesystemStore struct {
	root     string
	blobsDir string
	index    *labelIndex
}

// NewFilesystemStore opens (creating if necessary) a filesystem-backed
// chunk store rooted at root. If index.json is missing but blobs are
// present, the index is rebuilt from the blobs' own metadata files
// rather than starting the store believing itself empty.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	blobsDir := filepath.Join(root, "blobs")
	if err := os.MkdirAll(blobsDir, 0700); err != nil {
		return nil, fmt.Errorf("creating chunk blob directory: %w", err)
	}

	indexPath := filepath.Join(root, "index.json")
	_, statErr := os.Stat(indexPath)

	idx, err := newLabelIndex(indexPath)
	if err != nil {
		return nil, fmt.Errorf("loading chunk index: %w", err)
	}

	store := &FilesystemStore{
		root:     root,
		blobsDir: blobsDir,
		index:    idx,
	}

	if os.IsNotExist(statErr) {
		pairs, err := store.scanBlobMetadata()
		if err != nil {
			return nil, fmt.Errorf("scanning chunk blobs to rebuild index: %w", err)
		}
		if len(pairs) > 0 {
			rebuilt, err := rebuildLabelIndex(indexPath, pairs)
			if err != nil {
				return nil, fmt.Errorf("rebuilding chunk index: %w", err)
			}
			store.index = rebuilt
		}
	}

	return store, nil
}

// scanBlobMetadata reads every *.meta file in the blob directory,
// reconstructing the (id, label) pairs an index rebuild needs without
// trusting index.json at all.
func (s *FilesystemStore) scanBlobMetadata() (map[ID]Meta, error) {
	entries, err := os.ReadDir(s.blobsDir)
	if err != nil {
		return nil, err
	}

	pairs := make(map[ID]Meta)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".meta") {
			continue
		}
		id := ID(strings.TrimSuffix(name, ".meta"))
		meta, err := s.readMeta(id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		pairs[id] = meta
	}
	return pairs, nil
}

func (s *FilesystemStore) blobPath(id ID) string {
	return filepath.Join(s.blobsDir, string(id))
}

func (s *FilesystemStore) metaPath(id ID) string {
	return filepath.Join(s.blobsDir, string(id)+".meta")
}

// Put implements Store.
func (s *FilesystemStore) Put(meta Meta, r io.Reader) (ID, error) {
	id := NewID()

	f, err := renameio.TempFile("", s.blobPath(id))
	if err != nil {
		return "", fmt.Errorf("creating chunk blob: %w", err)
	}
	defer f.Cleanup()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("writing chunk blob: %w", err)
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("committing chunk blob: %w", err)
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encoding chunk metadata: %w", err)
	}
	if err := renameio.WriteFile(s.metaPath(id), metaJSON, 0600); err != nil {
		return "", fmt.Errorf("writing chunk metadata: %w", err)
	}

	// The blob and its metadata are durable before the label goes into
	// the index, so a reader that finds the label always finds a
	// complete chunk behind it.
	if err := s.index.Put(meta.Label, id); err != nil {
		return "", fmt.Errorf("indexing chunk: %w", err)
	}

	return id, nil
}

// Get implements Store.
func (s *FilesystemStore) Get(id ID, w io.Writer) (Meta, error) {
	meta, err := s.readMeta(id)
	if err != nil {
		return Meta{}, err
	}

	f, err := os.Open(s.blobPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, NewNotFoundError(id)
		}
		return Meta{}, fmt.Errorf("opening chunk blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return Meta{}, fmt.Errorf("reading chunk blob: %w", err)
	}
	return meta, nil
}

func (s *FilesystemStore) readMeta(id ID) (Meta, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, NewNotFoundError(id)
		}
		return Meta{}, fmt.Errorf("reading chunk metadata: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("parsing chunk metadata: %w", err)
	}
	return meta, nil
}

// FindByLabel implements Store.
func (s *FilesystemStore) FindByLabel(label string) (map[ID]Meta, error) {
	ids := s.index.Lookup(label)
	out := make(map[ID]Meta, len(ids))
	for _, id := range ids {
		meta, err := s.readMeta(id)
		if err != nil {
			if IsNotFound(err) {
				// Index and blob storage disagree; skip rather than fail
				// the whole search.
				continue
			}
			return nil, err
		}
		out[id] = meta
	}
	return out, nil
}

// Delete implements Store.
func (s *FilesystemStore) Delete(id ID) error {
	meta, err := s.readMeta(id)
	if err != nil {
		return err
	}

	if err := os.Remove(s.blobPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing chunk blob: %w", err)
	}
	if err := os.Remove(s.metaPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing chunk metadata: %w", err)
	}
	return s.index.Remove(meta.Label, id)
}

// Close implements Store.
func (s *FilesystemStore) Close() error { return nil }

var _ Store = (*FilesystemStore)(nil)
