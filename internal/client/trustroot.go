package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"obnam-go/internal/chunkserver"
	"obnam-go/internal/crypto"
)

// trustRootKind is the AEAD associated-data tag for TrustRoot chunks.
// trustRootLabel is the fixed label every TrustRoot chunk carries,
// letting a client locate its current TrustRoot by search rather than
// by any id persisted locally — the client never keeps a local
// pointer file. A client's identity is therefore entirely defined by
// which key file it holds.
const (
	trustRootKind  = "trustroot"
	trustRootLabel = "obnam:trustroot"
)

// TrustRootManager locates and atomically replaces the TrustRoot
// chunk. Because chunk ids are opaque and the label search
// can return more than one live TrustRoot chunk (an interrupted
// replacement leaves the old one in place, unreferenced but not
// deleted), the current TrustRoot is identified as the one candidate
// that no other candidate's PreviousVersion points at — the head of
// the chain of custody.
type TrustRootManager struct {
	transport Transport
	codec     *crypto.Codec
}

// NewTrustRootManager builds a TrustRootManager.
func NewTrustRootManager(transport Transport, codec *crypto.Codec) *TrustRootManager {
	return &TrustRootManager{transport: transport, codec: codec}
}

// Resolved is the outcome of locating the current TrustRoot: its chunk
// id and decrypted plaintext. A zero-value ID means no TrustRoot
// exists yet — the client has never completed a backup.
type Resolved struct {
	ID        chunkserver.ID
	Plaintext TrustRootPlaintext
}

// Current locates the current TrustRoot chunk, or a zero Resolved if
// none exists yet.
func (m *TrustRootManager) Current() (Resolved, error) {
	candidates, err := m.transport.FindByLabel(trustRootLabel)
	if err != nil {
		return Resolved{}, fmt.Errorf("finding trust root: %w", err)
	}
	if len(candidates) == 0 {
		return Resolved{}, nil
	}

	plaintexts := make(map[chunkserver.ID]TrustRootPlaintext, len(candidates))
	referenced := make(map[chunkserver.ID]bool, len(candidates))
	for id := range candidates {
		pt, err := m.fetch(id)
		if err != nil {
			return Resolved{}, err
		}
		plaintexts[id] = pt
		if pt.PreviousVersion != nil {
			referenced[chunkserver.ID(*pt.PreviousVersion)] = true
		}
	}

	var heads []chunkserver.ID
	for id := range candidates {
		if !referenced[id] {
			heads = append(heads, id)
		}
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i] < heads[j] })

	switch len(heads) {
	case 1:
		return Resolved{ID: heads[0], Plaintext: plaintexts[heads[0]]}, nil
	case 0:
		return Resolved{}, fmt.Errorf("%w: every trust root candidate is referenced as another's previous version", ErrIntegrityFailure)
	default:
		return Resolved{}, fmt.Errorf("%w: %d ambiguous trust root candidates found, expected exactly one", ErrIntegrityFailure, len(heads))
	}
}

func (m *TrustRootManager) fetch(id chunkserver.ID) (TrustRootPlaintext, error) {
	_, body, err := m.transport.Get(id)
	if err != nil {
		return TrustRootPlaintext{}, fmt.Errorf("fetching trust root %s: %w", id, err)
	}
	defer body.Close()

	envelope, err := io.ReadAll(body)
	if err != nil {
		return TrustRootPlaintext{}, fmt.Errorf("reading trust root %s: %w", id, err)
	}
	plaintext, err := m.codec.Open(envelope, []byte(trustRootKind))
	if err != nil {
		return TrustRootPlaintext{}, fmt.Errorf("%w: decrypting trust root %s: %v", ErrIntegrityFailure, id, err)
	}

	var pt TrustRootPlaintext
	if err := json.Unmarshal(plaintext, &pt); err != nil {
		return TrustRootPlaintext{}, fmt.Errorf("parsing trust root %s: %w", id, err)
	}
	return pt, nil
}

// Append reads the current TrustRoot, appends genID, encrypts,
// uploads as a fresh chunk, and adopts the new id locally only once
// the upload has succeeded. The caller is
// responsible for calling Append only after the Generation chunk's
// upload has itself already succeeded.
func (m *TrustRootManager) Append(genID chunkserver.ID) (Resolved, error) {
	current, err := m.Current()
	if err != nil {
		return Resolved{}, err
	}

	generations := append(append([]string{}, current.Plaintext.Generations...), string(genID))
	next := TrustRootPlaintext{Generations: generations}
	if current.ID != "" {
		prev := string(current.ID)
		next.PreviousVersion = &prev
	}

	data, err := json.Marshal(next)
	if err != nil {
		return Resolved{}, fmt.Errorf("encoding trust root: %w", err)
	}
	envelope, err := m.codec.Seal(data, []byte(trustRootKind))
	if err != nil {
		return Resolved{}, fmt.Errorf("encrypting trust root: %w", err)
	}

	id, err := m.transport.Put(chunkserver.NewMeta(trustRootLabel), bytes.NewReader(envelope))
	if err != nil {
		return Resolved{}, fmt.Errorf("uploading trust root: %w", err)
	}

	return Resolved{ID: id, Plaintext: next}, nil
}

// Resolve implements the `resolve` operation: "latest" resolves to
// the last generation id in the current TrustRoot; any other alias is
// treated as a literal, already-stable generation id and returned
// unchanged.
func (m *TrustRootManager) Resolve(alias string) (chunkserver.ID, error) {
	if alias != "latest" {
		return chunkserver.ID(alias), nil
	}

	current, err := m.Current()
	if err != nil {
		return "", err
	}
	if len(current.Plaintext.Generations) == 0 {
		return "", fmt.Errorf("resolving latest: no generations exist yet")
	}
	last := current.Plaintext.Generations[len(current.Plaintext.Generations)-1]
	return chunkserver.ID(last), nil
}
