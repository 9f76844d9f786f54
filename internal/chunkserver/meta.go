// Package chunkserver implements the chunk store and its HTTP API: a
// persistent, concurrency-safe, label-indexed store for opaque,
// client-encrypted blobs.
package chunkserver

import (
	"encoding/json"
	"fmt"
)

// Meta is the small piece of metadata a client attaches to a chunk when
// it is created. The server does not interpret Label; it only indexes
// it for later search.
//
// Meta round-trips through JSON so it fits in the Chunk-Meta HTTP
// header. Unknown fields present in the JSON are preserved in Extra so
// that older builds of this server can forward metadata written by
// newer clients without dropping it.
type Meta struct {
	Label string
	Extra map[string]json.RawMessage
}

// NewMeta creates metadata carrying the given label and no extra fields.
func NewMeta(label string) Meta {
	return Meta{Label: label}
}

// MarshalJSON serializes Meta the way the client expects to find it:
// a flat JSON object with "label" plus any extra keys.
func (m Meta) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+1)
	for k, v := range m.Extra {
		out[k] = v
	}
	labelJSON, err := json.Marshal(m.Label)
	if err != nil {
		return nil, fmt.Errorf("marshaling label: %w", err)
	}
	out["label"] = labelJSON
	return json.Marshal(out)
}

// UnmarshalJSON parses Meta from its wire representation. Unknown keys
// are kept in Extra rather than rejected, per the forward-compatibility
// requirement on Chunk-Meta.
func (m *Meta) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing chunk metadata: %w", err)
	}

	labelRaw, ok := raw["label"]
	if !ok {
		return fmt.Errorf("chunk metadata missing required \"label\" field")
	}
	var label string
	if err := json.Unmarshal(labelRaw, &label); err != nil {
		return fmt.Errorf("parsing chunk metadata label: %w", err)
	}
	if label == "" {
		return fmt.Errorf("chunk metadata label must not be empty")
	}
	delete(raw, "label")

	m.Label = label
	if len(raw) > 0 {
		m.Extra = raw
	} else {
		m.Extra = nil
	}
	return nil
}

// ParseMeta decodes a Chunk-Meta header value.
func ParseMeta(header string) (Meta, error) {
	if header == "" {
		return Meta{}, fmt.Errorf("missing Chunk-Meta header: %w", ErrMissingLabel)
	}
	var m Meta
	if err := json.Unmarshal([]byte(header), &m); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// Header renders Meta as a Chunk-Meta header value.
func (m Meta) Header() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding chunk metadata: %w", err)
	}
	return string(data), nil
}
