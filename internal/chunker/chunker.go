// Package chunker splits ordered text into overlapping fixed-size windows.
//
// Sizes and offsets are counted in runes. Consecutive chunks always share exactly
// overlap runes, so dropping the first overlap runes of every chunk but the first
// and concatenating reconstructs the input.
package chunker

import (
	"fmt"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/chunk"
)

// Chunker is pure and safe for concurrent use.
type Chunker struct {
	size     int
	overlap  int
	lookback int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithBoundaries lets a non-final window end early at the last sentence or paragraph
// break found within its final lookback runes. Zero disables boundary snapping.
func WithBoundaries(lookback int) Option {
	return func(c *Chunker) {
		if lookback > 0 {
			c.lookback = lookback
		}
	}
}

// New validates parameters. overlap must be in [0, size).
func New(size, overlap int, opts ...Option) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", size, domain.ErrInvalidConfig)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("overlap must be non-negative, got %d: %w", overlap, domain.ErrInvalidConfig)
	}
	if overlap >= size {
		return nil, fmt.Errorf("overlap %d must be less than chunk size %d: %w", overlap, size, domain.ErrInvalidConfig)
	}
	c := &Chunker{size: size, overlap: overlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.lookback > size {
		c.lookback = size
	}
	return c, nil
}

// Size returns the target window size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of runes shared by consecutive chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Span is a half-open rune range [Start, End).
type Span struct {
	Start int
	End   int
}

// Spans computes window boundaries for a text of the given runes.
func (c *Chunker) Spans(runes []rune) []Span {
	n := len(runes)
	if n == 0 {
		return nil
	}

	spans := make([]Span, 0, c.Count(n))
	start := 0
	for {
		end := min(start+c.size, n)
		if end < n && c.lookback > 0 {
			if b := lastBreak(runes, max(start+c.overlap, end-c.lookback), end); b > 0 {
				end = b
			}
		}
		spans = append(spans, Span{Start: start, End: end})
		if end == n {
			return spans
		}
		start = end - c.overlap
	}
}

// Split chunks text for a document. Empty text yields no chunks and no error.
func (c *Chunker) Split(documentID, text string) ([]chunk.Chunk, error) {
	runes := []rune(text)
	spans := c.Spans(runes)
	if len(spans) == 0 {
		return nil, nil
	}

	chunks := make([]chunk.Chunk, len(spans))
	for i, sp := range spans {
		ch, err := chunk.New(documentID, i, sp.Start, sp.End, string(runes[sp.Start:sp.End]))
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		chunks[i] = ch
	}
	return chunks, nil
}

// Count returns the number of fixed-mode windows for a text of n runes:
// ceil((n - overlap) / (size - overlap)) when n > size, 1 for 0 < n <= size, 0 for n = 0.
func (c *Chunker) Count(n int) int {
	switch {
	case n <= 0:
		return 0
	case n <= c.size:
		return 1
	}
	step := c.size - c.overlap
	return (n - c.overlap + step - 1) / step
}

// lastBreak returns the position just after the last break rune in runes[lo:hi], or -1.
func lastBreak(runes []rune, lo, hi int) int {
	for i := hi - 1; i >= lo; i-- {
		if isBreak(runes[i]) {
			return i + 1
		}
	}
	return -1
}

func isBreak(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}
