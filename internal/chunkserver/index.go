package chunkserver

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/renameio"
)

// labelIndex maps chunk labels to the ids of the chunks that carry them.
// A label is not unique: the same content-hash label can be attached to
// many ids if a client re-uploads the same content without checking for
// an existing match first, so every lookup returns a set.
//
// The index is kept entirely in memory and persisted to a single JSON
// file on every mutation. That is wasteful for a store with millions of
// chunks, but it keeps FindByLabel a plain map lookup instead of a
// directory scan, and atomic rename keeps the persisted copy always
// either fully old or fully new.
type labelIndex struct {
	path string

	mu      sync.RWMutex
	byLabel map[string]map[ID]bool
}

type indexEntry struct {
	Label string `json:"label"`
	ID    ID     `json:"id"`
}

func newLabelIndex(path string) (*labelIndex, error) {
	idx := &labelIndex{
		path:    path,
		byLabel: make(map[string]map[ID]bool),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("reading chunk index: %w", err)
	}

	var entries []indexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing chunk index: %w", err)
	}
	for _, e := range entries {
		idx.add(e.Label, e.ID)
	}
	return idx, nil
}

func (idx *labelIndex) add(label string, id ID) {
	ids, ok := idx.byLabel[label]
	if !ok {
		ids = make(map[ID]bool)
		idx.byLabel[label] = ids
	}
	ids[id] = true
}

// Put records that id carries label, and persists the index.
func (idx *labelIndex) Put(label string, id ID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.add(label, id)
	return idx.persistLocked()
}

// Remove drops id from the set of ids filed under label, and persists
// the index. It is not an error for id to be
// absent: Remove is used during Delete, and during recovery from a
// crash between removing the blob and updating the index.
func (idx *labelIndex) Remove(label string, id ID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if ids, ok := idx.byLabel[label]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(idx.byLabel, label)
		}
	}
	return idx.persistLocked()
}

// Lookup returns the set of ids currently filed under label.
func (idx *labelIndex) Lookup(label string) []ID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := idx.byLabel[label]
	out := make([]ID, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return out
}

func (idx *labelIndex) persistLocked() error {
	entries := make([]indexEntry, 0)
	for label, ids := range idx.byLabel {
		for id := range ids {
			entries = append(entries, indexEntry{Label: label, ID: id})
		}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding chunk index: %w", err)
	}
	if err := renameio.WriteFile(idx.path, data, 0644); err != nil {
		return fmt.Errorf("writing chunk index: %w", err)
	}
	return nil
}

// rebuildLabelIndex reconstructs the index from a store's own listing of
// (id, meta) pairs, discarding whatever was previously on disk. Called
// by FilesystemStore.NewFilesystemStore when index.json is missing but
// blobs already exist, mirroring the scan-and-reindex recovery original
// Obnam performed against SQLite on startup.
func rebuildLabelIndex(path string, pairs map[ID]Meta) (*labelIndex, error) {
	idx := &labelIndex{
		path:    path,
		byLabel: make(map[string]map[ID]bool),
	}
	for id, meta := range pairs {
		idx.add(meta.Label, id)
	}
	if err := idx.persistLocked(); err != nil {
		return nil, err
	}
	return idx, nil
}
