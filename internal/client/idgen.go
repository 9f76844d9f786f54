package client

import "github.com/google/uuid"

// IDGenerator abstracts unique id generation so tests are
// deterministic. The engine uses it for local, non-chunk identifiers
// (temporary index database file names) — chunk ids themselves are
// always server-assigned.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
