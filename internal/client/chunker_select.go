package client

import (
	"fmt"
	"io"

	"obnam-go/internal/chunkerimpl"
	"obnam-go/internal/config"
)

// newChunker builds the chunker strategy selected by the configured
// chunker_kind, defaulting to the fixed-size strategy.
func newChunker(kind config.ChunkerKind, r io.Reader, size int) (chunkerimpl.Chunker, error) {
	switch kind {
	case config.ChunkerCDC:
		return chunkerimpl.NewCDCChunker(r, size)
	case config.ChunkerFixed, "":
		return chunkerimpl.NewFixedChunker(r, size)
	default:
		return nil, fmt.Errorf("unknown chunker kind %q", kind)
	}
}

// readAllChunks drains a Chunker into a slice, the shape the Uploader
// consumes. Chunk content is bounded by chunk_size*4 at most (CDC's
// max window), so holding one file's chunks in memory is acceptable
// for the sizes this system targets.
func readAllChunks(c chunkerimpl.Chunker) ([]chunkerimpl.Chunk, error) {
	var chunks []chunkerimpl.Chunk
	for {
		chunk, err := c.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
}
