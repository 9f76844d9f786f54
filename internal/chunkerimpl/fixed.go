package chunkerimpl

import (
	"fmt"
	"io"
)

// FixedChunker splits content into equal-sized chunks (the final chunk
// may be shorter). It is the mandatory baseline strategy: deterministic,
// cheap, and good enough for whole-file-changed workloads even though
// it has no resistance to insertions shifting every later boundary.
type FixedChunker struct {
	r         io.Reader
	size      int
	offset    int64
	buf       []byte
	exhausted bool
}

// NewFixedChunker creates a FixedChunker reading from r, producing
// chunks of at most size bytes. size must be positive.
func NewFixedChunker(r io.Reader, size int) (*FixedChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	return &FixedChunker{
		r:    r,
		size: size,
		buf:  make([]byte, size),
	}, nil
}

// Next implements Chunker.
func (c *FixedChunker) Next() (Chunk, error) {
	if c.exhausted {
		return Chunk{}, io.EOF
	}

	n, err := io.ReadFull(c.r, c.buf)
	switch {
	case err == nil:
		// buf filled exactly; more data may follow.
	case err == io.ErrUnexpectedEOF:
		c.exhausted = true
	case err == io.EOF:
		return Chunk{}, io.EOF
	default:
		return Chunk{}, fmt.Errorf("reading chunk data: %w", err)
	}

	chunk := Chunk{
		Offset: c.offset,
		Data:   append([]byte(nil), c.buf[:n]...),
	}
	c.offset += int64(n)
	return chunk, nil
}

var _ Chunker = (*FixedChunker)(nil)
