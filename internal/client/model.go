package client

import (
	"obnam-go/internal/index"
)

// GenerationPlaintext is the plaintext body of a Generation chunk: an
// ordered reference to the index database plus schema and bookkeeping
// metadata.
type GenerationPlaintext struct {
	SchemaVersion index.SchemaVersion `json:"schema_version"`
	IndexParts    []string            `json:"index_parts"`
	Ended         *string             `json:"ended,omitempty"`
	Extras        map[string]string   `json:"extras,omitempty"`
}

// TrustRootPlaintext is the plaintext body of the TrustRoot chunk: the
// ordered list of generation ids known to this client, plus a link to
// the previous TrustRoot chunk it replaced.
type TrustRootPlaintext struct {
	Generations     []string `json:"generations"`
	PreviousVersion *string  `json:"previous_version,omitempty"`
}
