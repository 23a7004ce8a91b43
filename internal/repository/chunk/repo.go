// Package chunk stores chunk records as hashes under a vector search index.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/docrag/internal/db"
	"github.com/kailas-cloud/docrag/internal/domain"
	domchunk "github.com/kailas-cloud/docrag/internal/domain/chunk"
)

// store is the consumer interface for chunk persistence (ISP).
type store interface {
	Scan(ctx context.Context, pattern string) ([]string, error)
	Atomic(ctx context.Context, b db.Batch) (int, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig holds HNSW index tuning parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the chunk store contract of the ingest and retrieve use cases.
type Repo struct {
	store      store
	dimensions int
	hnsw       HNSWConfig
}

// New creates a chunk repository for vectors of the given dimension.
func New(s store, dimensions int, hnsw HNSWConfig) *Repo {
	return &Repo{store: s, dimensions: dimensions, hnsw: hnsw}
}

// EnsureIndex creates the chunk index when it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName())
	if err != nil {
		return storeErr("check index", err)
	}
	if exists {
		return nil
	}

	def, err := buildIndex(r.dimensions, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return storeErr("create index", err)
	}
	return nil
}

// Upsert writes records keyed by (document, sequence index). Rewriting a key replaces it.
func (r *Repo) Upsert(ctx context.Context, records ...domchunk.Record) error {
	if len(records) == 0 {
		return nil
	}
	sets, err := r.hashItems(records)
	if err != nil {
		return err
	}
	if _, err := r.store.Atomic(ctx, db.Batch{Sets: sets}); err != nil {
		return storeErr("upsert chunks", err)
	}
	return nil
}

// ReplaceDocument swaps a document's chunk set in one transaction: every existing key of the
// document is deleted and the new records are written. Readers see the old set or the new one.
func (r *Repo) ReplaceDocument(ctx context.Context, documentID string, records []domchunk.Record) error {
	for i := range records {
		if records[i].Chunk.DocumentID() != documentID {
			return fmt.Errorf("record %d belongs to %q, not %q: %w",
				i, records[i].Chunk.DocumentID(), documentID, domain.ErrInvalidRequest)
		}
	}

	stale, err := r.store.Scan(ctx, documentPattern(documentID))
	if err != nil {
		return storeErr("scan chunks", err)
	}
	sets, err := r.hashItems(records)
	if err != nil {
		return err
	}

	b := db.Batch{Deletes: stale, Sets: sets}
	if b.IsEmpty() {
		return nil
	}
	if _, err := r.store.Atomic(ctx, b); err != nil {
		return storeErr("replace chunks", err)
	}
	return nil
}

// DeleteByDocument removes every chunk of a document atomically and returns how many were removed.
func (r *Repo) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	keys, err := r.store.Scan(ctx, documentPattern(documentID))
	if err != nil {
		return 0, storeErr("scan chunks", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.store.Atomic(ctx, db.Batch{Deletes: keys})
	if err != nil {
		return 0, storeErr("delete chunks", err)
	}
	return n, nil
}

// Search returns up to K chunks by cosine similarity, ordered with chunk.Less.
func (r *Repo) Search(ctx context.Context, q domchunk.SearchQuery) ([]domchunk.Scored, error) {
	if len(q.Vector) != r.dimensions {
		return nil, fmt.Errorf("query vector has dimension %d, index expects %d: %w",
			len(q.Vector), r.dimensions, domain.ErrVectorDimMismatch)
	}
	if q.K <= 0 {
		return nil, nil
	}

	kq := &db.KNNQuery{
		IndexName:    indexName(),
		VectorField:  fieldVector,
		Vector:       q.Vector,
		K:            q.K,
		ReturnFields: returnFields,
	}
	if len(q.DocumentIDs) > 0 {
		kq.Tags = &db.TagFilter{Field: fieldDocumentID, Values: q.DocumentIDs}
	}

	sr, err := r.store.SearchKNN(ctx, kq)
	if err != nil {
		return nil, storeErr("search chunks", err)
	}
	if sr == nil {
		return nil, nil
	}

	out := make([]domchunk.Scored, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		c, err := parseHashFields(e.Fields)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Key, err)
		}
		out = append(out, domchunk.Scored{Chunk: c, Score: e.Score})
	}
	domchunk.Sort(out)
	return out, nil
}

func (r *Repo) hashItems(records []domchunk.Record) ([]db.HashSetItem, error) {
	items := make([]db.HashSetItem, len(records))
	for i, rec := range records {
		if len(rec.Vector) != r.dimensions {
			return nil, fmt.Errorf("chunk %d has dimension %d, index expects %d: %w",
				rec.Chunk.Seq(), len(rec.Vector), r.dimensions, domain.ErrVectorDimMismatch)
		}
		items[i] = db.HashSetItem{
			Key:    chunkKey(rec.Chunk.DocumentID(), rec.Chunk.Seq()),
			Fields: buildHashFields(rec),
		}
	}
	return items, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStore, err)
}

func keyPrefix() string { return domain.KeyPrefix + "chunk:" }

func indexName() string { return domain.KeyPrefix + "chunks:idx" }

func chunkKey(documentID string, seq int) string {
	return keyPrefix() + documentID + ":" + strconv.Itoa(seq)
}

func documentPattern(documentID string) string {
	return keyPrefix() + documentID + ":*"
}
