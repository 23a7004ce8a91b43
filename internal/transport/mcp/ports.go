package mcp

import (
	"context"

	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/retrieval"
	"github.com/kailas-cloud/docrag/internal/usecase/answer"
	"github.com/kailas-cloud/docrag/internal/usecase/ingest"
	"github.com/kailas-cloud/docrag/internal/usecase/retrieve"
)

// Ingester manages the document lifecycle.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (document.Document, error)
	List(ctx context.Context) ([]document.Document, error)
	Delete(ctx context.Context, id string) error
}

// Retriever answers similarity queries.
type Retriever interface {
	Query(ctx context.Context, req retrieve.Request) ([]retrieval.Item, error)
}

// Answerer generates answers grounded on retrieved chunks.
type Answerer interface {
	Answer(ctx context.Context, req retrieve.Request) (answer.Result, error)
}

// Ports aggregates the services exposed as tools.
type Ports struct {
	Documents Ingester
	Retriever Retriever
	// Answerer is optional. The answer_question tool is registered only when set.
	Answerer Answerer
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Documents == nil {
		return ErrMissingDocuments
	}
	if p.Retriever == nil {
		return ErrMissingRetriever
	}
	return nil
}
