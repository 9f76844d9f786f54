package chunkerimpl

import (
	"fmt"
	"io"

	resticchunker "github.com/restic/chunker"
)

// defaultPolynomial is a fixed irreducible polynomial used to seed the
// rolling hash. It must stay constant for a given backup client
// installation: two chunkings of the same bytes only produce the same
// boundaries, and thus the same dedup opportunities, if they used the
// same polynomial. A random polynomial per run (as
// resticchunker.RandomPolynomial can produce) would be more resistant
// to an adversary pre-computing chunk boundaries, but it would also
// destroy cross-generation deduplication, which matters more for a
// backup tool than that hardening does.
const defaultPolynomial = resticchunker.Pol(0x3DA3358B4DC173)

// CDCChunker splits content on content-defined boundaries using a
// Rabin fingerprint rolling hash (github.com/restic/chunker), so that
// inserting or deleting bytes in the middle of a file only changes the
// one or two chunks touching the edit instead of shifting every chunk
// boundary after it the way FixedChunker's fixed-offset boundaries do.
type CDCChunker struct {
	inner *resticchunker.Chunker
	buf   []byte
}

// NewCDCChunker creates a CDCChunker reading from r whose chunks are
// bounded to size/4..size*4 bytes (the final chunk may be shorter).
// Within those bounds a boundary falls where the rolling hash matches
// restic/chunker's default split mask, which averages about 1 MiB, so
// for sizes well below that most chunks end at the size*4 bound.
func NewCDCChunker(r io.Reader, size int) (*CDCChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	min, max := chunkSizeBounds(size)

	c := resticchunker.NewWithBoundaries(r, defaultPolynomial, uint(min), uint(max))
	return &CDCChunker{
		inner: c,
		buf:   make([]byte, max),
	}, nil
}

// Next implements Chunker.
func (c *CDCChunker) Next() (Chunk, error) {
	chunk, err := c.inner.Next(c.buf)
	if err == io.EOF {
		return Chunk{}, io.EOF
	}
	if err != nil {
		return Chunk{}, fmt.Errorf("chunking data: %w", err)
	}

	return Chunk{
		Offset: int64(chunk.Start),
		Data:   append([]byte(nil), chunk.Data...),
	}, nil
}

var _ Chunker = (*CDCChunker)(nil)
