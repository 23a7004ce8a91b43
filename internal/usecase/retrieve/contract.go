package retrieve

import (
	"context"

	"github.com/kailas-cloud/docrag/internal/domain/chunk"
	"github.com/kailas-cloud/docrag/internal/domain/document"
)

// QueryEmbedder vectorizes query text.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs similarity search over stored chunks.
type Searcher interface {
	Search(ctx context.Context, q chunk.SearchQuery) ([]chunk.Scored, error)
}

// DocumentReader resolves documents for scope checks and citations.
type DocumentReader interface {
	Get(ctx context.Context, id string) (document.Document, error)
}
