package pgvector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
)

const (
	saveDocumentSQL = `INSERT INTO documents
			(id, name, format, length, state, last_stage, chunk_count, failure, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			format = EXCLUDED.format,
			length = EXCLUDED.length,
			state = EXCLUDED.state,
			last_stage = EXCLUDED.last_stage,
			chunk_count = EXCLUDED.chunk_count,
			failure = EXCLUDED.failure,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at`
	documentColumns   = `id, name, format, length, state, last_stage, chunk_count, failure, created_at, updated_at`
	getDocumentSQL    = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	listDocumentsSQL  = `SELECT ` + documentColumns + ` FROM documents ORDER BY id`
	deleteDocumentSQL = `DELETE FROM documents WHERE id = $1`
)

// Registry keeps document records in the documents table.
type Registry struct {
	db querier
}

// NewRegistry creates a Postgres document registry.
func NewRegistry(q querier) *Registry {
	return &Registry{db: q}
}

// Save inserts or replaces the document record.
func (r *Registry) Save(ctx context.Context, doc *document.Document) error {
	_, err := r.db.Exec(ctx, saveDocumentSQL,
		doc.ID(), doc.Name(), doc.Format(), doc.Length(),
		string(doc.State()), string(doc.LastStage()), doc.ChunkCount(), doc.Failure(),
		doc.CreatedAt(), doc.UpdatedAt(),
	)
	if err != nil {
		return storeErr("save document "+doc.ID(), err)
	}
	return nil
}

// Get returns a document by ID.
func (r *Registry) Get(ctx context.Context, id string) (document.Document, error) {
	doc, err := scanDocument(r.db.QueryRow(ctx, getDocumentSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return document.Document{}, domain.ErrDocumentNotFound
		}
		return document.Document{}, storeErr("get document "+id, err)
	}
	return doc, nil
}

// Delete removes a document record.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, deleteDocumentSQL, id); err != nil {
		return storeErr("delete document "+id, err)
	}
	return nil
}

// List returns every document ordered by ID.
func (r *Registry) List(ctx context.Context) ([]document.Document, error) {
	rows, err := r.db.Query(ctx, listDocumentsSQL)
	if err != nil {
		return nil, storeErr("list documents", err)
	}
	defer rows.Close()

	var out []document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, storeErr("scan document row", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list documents", err)
	}
	return out, nil
}

func scanDocument(row pgx.Row) (document.Document, error) {
	var (
		id, name, format, state, lastStage, failure string
		length, chunkCount                          int
		createdAt, updatedAt                        time.Time
	)
	if err := row.Scan(&id, &name, &format, &length, &state, &lastStage,
		&chunkCount, &failure, &createdAt, &updatedAt); err != nil {
		return document.Document{}, err //nolint:wrapcheck // callers wrap
	}
	return hydrate(id, name, format, length, state, lastStage, chunkCount, failure, createdAt, updatedAt)
}

func hydrate(
	id, name, format string, length int,
	state, lastStage string, chunkCount int, failure string,
	createdAt, updatedAt time.Time,
) (document.Document, error) {
	st, err := document.ParseState(state)
	if err != nil {
		return document.Document{}, fmt.Errorf("document %s: %w", id, err)
	}
	var last document.State
	if lastStage != "" {
		if last, err = document.ParseState(lastStage); err != nil {
			return document.Document{}, fmt.Errorf("document %s: %w", id, err)
		}
	}
	return document.Reconstruct(id, name, format, length, st, last, chunkCount, failure,
		createdAt.UTC(), updatedAt.UTC()), nil
}
