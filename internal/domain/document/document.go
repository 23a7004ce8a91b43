package document

import (
	"fmt"
	"regexp"
	"time"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxIDLength is the maximum document ID length.
const MaxIDLength = 256

// Document is the document aggregate owned by the ingestion orchestrator.
type Document struct {
	id         string
	name       string
	format     string
	length     int
	state      State
	lastStage  State
	chunkCount int
	failure    string
	createdAt  time.Time
	updatedAt  time.Time
}

// ValidateID checks the document identifier: ^[a-zA-Z0-9_-]+$, 1-256 chars.
// The charset keeps IDs safe inside key patterns and tag filters.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("document ID is required")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("document ID too long (max %d)", MaxIDLength)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("document ID must be alphanumeric with underscores and hyphens")
	}
	return nil
}

// New validates and creates a Document in the uploaded state.
// A blank name defaults to the ID; length is the text length in characters.
func New(id, name, format string, length int, now time.Time) (Document, error) {
	if err := ValidateID(id); err != nil {
		return Document{}, err
	}
	if length < 0 {
		return Document{}, fmt.Errorf("length must be non-negative")
	}
	if name == "" {
		name = id
	}
	return Document{
		id:        id,
		name:      name,
		format:    format,
		length:    length,
		state:     StateUploaded,
		createdAt: now.UTC(),
		updatedAt: now.UTC(),
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(
	id, name, format string, length int,
	state, lastStage State, chunkCount int, failure string,
	createdAt, updatedAt time.Time,
) Document {
	return Document{
		id: id, name: name, format: format, length: length,
		state: state, lastStage: lastStage, chunkCount: chunkCount, failure: failure,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Name returns the display name.
func (d *Document) Name() string { return d.name }

// Format returns the source format tag (txt, md, pdf, ...).
func (d *Document) Format() string { return d.format }

// Length returns the text length in characters.
func (d *Document) Length() int { return d.length }

// State returns the lifecycle state.
func (d *Document) State() State { return d.state }

// LastStage returns the last stage completed successfully.
func (d *Document) LastStage() State { return d.lastStage }

// ChunkCount returns the number of stored chunks.
func (d *Document) ChunkCount() int { return d.chunkCount }

// Failure returns the failure reason of a failed document.
func (d *Document) Failure() string { return d.failure }

// CreatedAt returns the ingestion timestamp.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the time of the last state change.
func (d *Document) UpdatedAt() time.Time { return d.updatedAt }

// Advance moves the document to the next lifecycle state.
// The state being left becomes the last completed stage.
func (d *Document) Advance(to State, now time.Time) error {
	if to == StateFailed {
		return fmt.Errorf("use Fail to enter %s", StateFailed)
	}
	next, err := d.state.Transition(to)
	if err != nil {
		return err
	}
	d.lastStage = d.state
	d.state = next
	d.updatedAt = now.UTC()
	return nil
}

// Fail moves the document to failed, keeping the last completed stage.
func (d *Document) Fail(reason string, now time.Time) error {
	if _, err := d.state.Transition(StateFailed); err != nil {
		return err
	}
	d.state = StateFailed
	d.failure = reason
	d.updatedAt = now.UTC()
	return nil
}

// SetChunkCount records the number of chunks produced.
func (d *Document) SetChunkCount(n int) { d.chunkCount = n }

// IsReady reports whether the document is queryable.
func (d *Document) IsReady() bool { return d.state == StateReady }
