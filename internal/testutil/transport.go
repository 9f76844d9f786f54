package testutil

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"obnam-go/internal/chunkserver"
)

// FakeTransport is an in-memory double for the chunk server's HTTP
// API, letting the uploader, generation builder, and restorer be
// tested without a real network round trip. Safe for concurrent use.
type FakeTransport struct {
	mu     sync.Mutex
	blobs  map[chunkserver.ID][]byte
	metas  map[chunkserver.ID]chunkserver.Meta
	labels map[string]map[chunkserver.ID]bool
	nextID int
}

// NewFakeTransport builds an empty FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		blobs:  make(map[chunkserver.ID][]byte),
		metas:  make(map[chunkserver.ID]chunkserver.Meta),
		labels: make(map[string]map[chunkserver.ID]bool),
	}
}

func (t *FakeTransport) Put(meta chunkserver.Meta, r io.Reader) (chunkserver.ID, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := chunkserver.ID(fmt.Sprintf("fake-%d", t.nextID))
	t.blobs[id] = data
	t.metas[id] = meta
	if t.labels[meta.Label] == nil {
		t.labels[meta.Label] = make(map[chunkserver.ID]bool)
	}
	t.labels[meta.Label][id] = true
	return id, nil
}

func (t *FakeTransport) Get(id chunkserver.ID) (chunkserver.Meta, io.ReadCloser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, ok := t.blobs[id]
	if !ok {
		return chunkserver.Meta{}, nil, chunkserver.NewNotFoundError(id)
	}
	return t.metas[id], io.NopCloser(bytes.NewReader(data)), nil
}

func (t *FakeTransport) FindByLabel(label string) (map[chunkserver.ID]chunkserver.Meta, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[chunkserver.ID]chunkserver.Meta)
	for id := range t.labels[label] {
		out[id] = t.metas[id]
	}
	return out, nil
}

func (t *FakeTransport) Delete(id chunkserver.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	meta, ok := t.metas[id]
	if !ok {
		return chunkserver.NewNotFoundError(id)
	}
	delete(t.blobs, id)
	delete(t.metas, id)
	delete(t.labels[meta.Label], id)
	return nil
}

// CorruptBlob overwrites a stored blob's bytes directly, bypassing
// Put, to simulate on-disk corruption for IntegrityFailure tests.
func (t *FakeTransport) CorruptBlob(id chunkserver.ID, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blobs[id] = data
}

// IDs returns every id currently stored, in the order Put assigned
// them, letting a test single out an early upload (e.g. the first
// data chunk written before any index part or generation chunk).
func (t *FakeTransport) IDs() []chunkserver.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]chunkserver.ID, 0, len(t.blobs))
	for i := 1; i <= t.nextID; i++ {
		id := chunkserver.ID(fmt.Sprintf("fake-%d", i))
		if _, ok := t.blobs[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len reports how many blobs are currently stored.
func (t *FakeTransport) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.blobs)
}
