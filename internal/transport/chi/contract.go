package chi

import (
	"context"

	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/retrieval"
	"github.com/kailas-cloud/docrag/internal/usecase/answer"
	"github.com/kailas-cloud/docrag/internal/usecase/health"
	"github.com/kailas-cloud/docrag/internal/usecase/ingest"
	"github.com/kailas-cloud/docrag/internal/usecase/retrieve"
)

// Ingester manages the document lifecycle.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (document.Document, error)
	Get(ctx context.Context, id string) (document.Document, error)
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

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}
