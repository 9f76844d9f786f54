package chunkserver

import "github.com/google/uuid"

// ID is an opaque, server-assigned chunk identifier. Clients must treat
// it as an opaque string; the server guarantees it is collision-free for
// the lifetime of the store.
type ID string

// NewID generates a new random chunk identifier.
//
// UUID4 gives 122 bits of randomness, which keeps the collision
// probability negligible even for stores holding many billions of
// chunks.
func NewID() ID {
	return ID(uuid.New().String())
}

func (id ID) String() string { return string(id) }
