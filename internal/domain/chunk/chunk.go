// Package chunk holds the chunk value object: a contiguous, immutable slice of a document's text.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// Chunk is identified by (document ID, sequence index). Offsets are rune offsets into the
// original text, half-open: [Start, End).
type Chunk struct {
	documentID  string
	seq         int
	start       int
	end         int
	text        string
	fingerprint string
}

// New validates and creates a Chunk. The fingerprint is derived from text.
func New(documentID string, seq, start, end int, text string) (Chunk, error) {
	if documentID == "" {
		return Chunk{}, fmt.Errorf("document ID is required")
	}
	if seq < 0 {
		return Chunk{}, fmt.Errorf("sequence index must be non-negative, got %d", seq)
	}
	if start < 0 || end < start {
		return Chunk{}, fmt.Errorf("invalid offsets [%d, %d)", start, end)
	}
	return Chunk{
		documentID:  documentID,
		seq:         seq,
		start:       start,
		end:         end,
		text:        text,
		fingerprint: Fingerprint(text),
	}, nil
}

// Reconstruct creates a Chunk without validation (storage hydration).
// An empty fingerprint is recomputed from text.
func Reconstruct(documentID string, seq, start, end int, text, fingerprint string) Chunk {
	if fingerprint == "" {
		fingerprint = Fingerprint(text)
	}
	return Chunk{
		documentID: documentID, seq: seq, start: start, end: end,
		text: text, fingerprint: fingerprint,
	}
}

// DocumentID returns the owning document identifier.
func (c Chunk) DocumentID() string { return c.documentID }

// Seq returns the 0-based sequence index within the document.
func (c Chunk) Seq() int { return c.seq }

// Start returns the inclusive start rune offset.
func (c Chunk) Start() int { return c.start }

// End returns the exclusive end rune offset.
func (c Chunk) End() int { return c.end }

// Text returns the raw chunk text.
func (c Chunk) Text() string { return c.text }

// Fingerprint returns the hash of the normalized text.
func (c Chunk) Fingerprint() string { return c.fingerprint }

// Len returns the chunk length in runes.
func (c Chunk) Len() int { return c.end - c.start }

// Fingerprint hashes the normalized form of text: lower-cased, whitespace runs collapsed to a
// single space, trimmed. Windows that differ only in spacing or case collide on purpose.
func Fingerprint(text string) string {
	h := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(h[:])
}

// Normalize returns the canonical text used for fingerprinting.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Record pairs a chunk with its embedding for storage.
type Record struct {
	Chunk  Chunk
	Vector []float32
}

// Scored is a chunk returned by similarity search with its cosine similarity.
type Scored struct {
	Chunk Chunk
	Score float64
}

// Less orders scored chunks by descending score, then ascending sequence index,
// then ascending document ID. Every backend sorts with it.
func Less(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Chunk.seq != b.Chunk.seq {
		return a.Chunk.seq < b.Chunk.seq
	}
	return a.Chunk.documentID < b.Chunk.documentID
}

// Fingerprints returns the fingerprints of chunks in order.
func Fingerprints(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i := range chunks {
		out[i] = chunks[i].fingerprint
	}
	return out
}
