package chunkserver

import "errors"

// ErrMissingLabel is returned when a client attempts to create a chunk
// without a Chunk-Meta header carrying a label.
var ErrMissingLabel = errors.New("chunk-meta: missing label")

// ErrLabelQueryRequired is returned when the label search endpoint is
// called without exactly one label query parameter.
var ErrLabelQueryRequired = errors.New("exactly one label query parameter is required")
