package pgvector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/chunk"
)

const (
	upsertChunkSQL = `INSERT INTO chunks (document_id, seq, start_offset, end_offset, text, fingerprint, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (document_id, seq) DO UPDATE SET
			start_offset = EXCLUDED.start_offset,
			end_offset = EXCLUDED.end_offset,
			text = EXCLUDED.text,
			fingerprint = EXCLUDED.fingerprint,
			embedding = EXCLUDED.embedding`
	deleteChunksSQL = `DELETE FROM chunks WHERE document_id = $1`
	searchSQL       = `SELECT document_id, seq, start_offset, end_offset, text, fingerprint,
			1 - (embedding <=> $1) AS score
		FROM chunks
		ORDER BY embedding <=> $1, seq, document_id
		LIMIT $2`
	searchScopedSQL = `SELECT document_id, seq, start_offset, end_offset, text, fingerprint,
			1 - (embedding <=> $1) AS score
		FROM chunks
		WHERE document_id = ANY($3)
		ORDER BY embedding <=> $1, seq, document_id
		LIMIT $2`
)

// ChunkStore keeps chunks in a pgvector table.
type ChunkStore struct {
	db         querier
	dimensions int
}

// NewChunkStore creates a chunk store for vectors of the given dimension.
func NewChunkStore(q querier, dimensions int) *ChunkStore {
	return &ChunkStore{db: q, dimensions: dimensions}
}

// Upsert writes records in one transaction.
func (s *ChunkStore) Upsert(ctx context.Context, records ...chunk.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.checkDims(records); err != nil {
		return err
	}
	return s.inTx(ctx, "upsert chunks", func(tx pgx.Tx) error {
		return sendUpserts(ctx, tx, records)
	})
}

// ReplaceDocument deletes the document's chunks and writes the new set in one transaction.
func (s *ChunkStore) ReplaceDocument(ctx context.Context, documentID string, records []chunk.Record) error {
	for i := range records {
		if records[i].Chunk.DocumentID() != documentID {
			return fmt.Errorf("record %d belongs to %q, not %q: %w",
				i, records[i].Chunk.DocumentID(), documentID, domain.ErrInvalidRequest)
		}
	}
	if err := s.checkDims(records); err != nil {
		return err
	}
	return s.inTx(ctx, "replace chunks", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteChunksSQL, documentID); err != nil {
			return err
		}
		return sendUpserts(ctx, tx, records)
	})
}

// DeleteByDocument removes every chunk of a document and returns how many were removed.
func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	tag, err := s.db.Exec(ctx, deleteChunksSQL, documentID)
	if err != nil {
		return 0, storeErr("delete chunks", err)
	}
	return int(tag.RowsAffected()), nil
}

// Search orders chunks by cosine distance.
func (s *ChunkStore) Search(ctx context.Context, q chunk.SearchQuery) ([]chunk.Scored, error) {
	if len(q.Vector) != s.dimensions {
		return nil, fmt.Errorf("query vector has dimension %d, index expects %d: %w",
			len(q.Vector), s.dimensions, domain.ErrVectorDimMismatch)
	}
	if q.K <= 0 {
		return nil, nil
	}

	vec := pgv.NewVector(q.Vector)
	var (
		rows pgx.Rows
		err  error
	)
	if len(q.DocumentIDs) > 0 {
		rows, err = s.db.Query(ctx, searchScopedSQL, vec, q.K, q.DocumentIDs)
	} else {
		rows, err = s.db.Query(ctx, searchSQL, vec, q.K)
	}
	if err != nil {
		return nil, storeErr("search chunks", err)
	}
	defer rows.Close()

	var out []chunk.Scored
	for rows.Next() {
		var (
			docID, text, fp string
			seq, start, end int
			score           float64
		)
		if err := rows.Scan(&docID, &seq, &start, &end, &text, &fp, &score); err != nil {
			return nil, storeErr("scan chunk row", err)
		}
		out = append(out, chunk.Scored{
			Chunk: chunk.Reconstruct(docID, seq, start, end, text, fp),
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("search chunks", err)
	}
	chunk.Sort(out)
	return out, nil
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

func (s *ChunkStore) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return storeErr(op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return storeErr(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr(op, err)
	}
	return nil
}

func sendUpserts(ctx context.Context, tx pgx.Tx, records []chunk.Record) error {
	if len(records) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, rec := range records {
		c := rec.Chunk
		b.Queue(upsertChunkSQL, upsertArgs(c, rec.Vector)...)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("write %d chunks: %w", len(records), err)
	}
	return nil
}

func upsertArgs(c chunk.Chunk, vector []float32) []any {
	return []any{c.DocumentID(), c.Seq(), c.Start(), c.End(), c.Text(), c.Fingerprint(), pgv.NewVector(vector)}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStore, err)
}
