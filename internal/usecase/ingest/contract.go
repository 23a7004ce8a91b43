package ingest

import (
	"context"

	"github.com/kailas-cloud/docrag/internal/domain/chunk"
	"github.com/kailas-cloud/docrag/internal/domain/document"
)

// Chunker splits document text into ordered chunks.
type Chunker interface {
	Split(documentID, text string) ([]chunk.Chunk, error)
}

// Embedder vectorizes chunk texts, preserving order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists a document's chunk set.
type ChunkStore interface {
	ReplaceDocument(ctx context.Context, documentID string, records []chunk.Record) error
	DeleteByDocument(ctx context.Context, documentID string) (int, error)
}

// Registry persists document lifecycle records.
type Registry interface {
	Save(ctx context.Context, doc *document.Document) error
	Get(ctx context.Context, id string) (document.Document, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]document.Document, error)
}
