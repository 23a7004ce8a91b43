// Package memory provides process-local chunk store and document registry backends.
// Intended for tests and single-process deployments; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/chunk"
)

type chunkKey struct {
	documentID string
	seq        int
}

// ChunkStore keeps records in a map and searches them brute force.
type ChunkStore struct {
	mu         sync.RWMutex
	dimensions int
	records    map[chunkKey]chunk.Record
	// order holds insertion order so equal-score ties stay stable across calls.
	order []chunkKey
}

// NewChunkStore creates an empty store for vectors of the given dimension.
func NewChunkStore(dimensions int) *ChunkStore {
	return &ChunkStore{dimensions: dimensions, records: make(map[chunkKey]chunk.Record)}
}

// Upsert writes records, replacing any with the same (document, sequence index).
func (s *ChunkStore) Upsert(_ context.Context, records ...chunk.Record) error {
	if err := s.checkDims(records); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.put(rec)
	}
	return nil
}

// ReplaceDocument swaps a document's chunk set under the write lock.
func (s *ChunkStore) ReplaceDocument(_ context.Context, documentID string, records []chunk.Record) error {
	for i := range records {
		if records[i].Chunk.DocumentID() != documentID {
			return fmt.Errorf("record %d belongs to %q, not %q: %w",
				i, records[i].Chunk.DocumentID(), documentID, domain.ErrInvalidRequest)
		}
	}
	if err := s.checkDims(records); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeDocument(documentID)
	for _, rec := range records {
		s.put(rec)
	}
	return nil
}

// DeleteByDocument removes every chunk of a document and returns how many were removed.
func (s *ChunkStore) DeleteByDocument(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeDocument(documentID), nil
}

// Search scores every in-scope record against the query vector.
func (s *ChunkStore) Search(ctx context.Context, q chunk.SearchQuery) ([]chunk.Scored, error) {
	if len(q.Vector) != s.dimensions {
		return nil, fmt.Errorf("query vector has dimension %d, index expects %d: %w",
			len(q.Vector), s.dimensions, domain.ErrVectorDimMismatch)
	}
	if q.K <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	scored := make([]chunk.Scored, 0, len(s.order))
	for _, k := range s.order {
		if !q.InScope(k.documentID) {
			continue
		}
		rec := s.records[k]
		scored = append(scored, chunk.Scored{Chunk: rec.Chunk, Score: chunk.Cosine(q.Vector, rec.Vector)})
	}
	s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	chunk.Sort(scored)
	if len(scored) > q.K {
		scored = scored[:q.K]
	}
	return scored, nil
}

// Len returns the number of stored chunks.
func (s *ChunkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *ChunkStore) checkDims(records []chunk.Record) error {
	for _, rec := range records {
		if len(rec.Vector) != s.dimensions {
			return fmt.Errorf("chunk %d has dimension %d, index expects %d: %w",
				rec.Chunk.Seq(), len(rec.Vector), s.dimensions, domain.ErrVectorDimMismatch)
		}
	}
	return nil
}

// put must be called with the write lock held.
func (s *ChunkStore) put(rec chunk.Record) {
	k := chunkKey{documentID: rec.Chunk.DocumentID(), seq: rec.Chunk.Seq()}
	if _, ok := s.records[k]; !ok {
		s.order = append(s.order, k)
	}
	vec := make([]float32, len(rec.Vector))
	copy(vec, rec.Vector)
	s.records[k] = chunk.Record{Chunk: rec.Chunk, Vector: vec}
}

// removeDocument must be called with the write lock held.
func (s *ChunkStore) removeDocument(documentID string) int {
	kept := s.order[:0]
	removed := 0
	for _, k := range s.order {
		if k.documentID == documentID {
			delete(s.records, k)
			removed++
			continue
		}
		kept = append(kept, k)
	}
	s.order = kept
	return removed
}
