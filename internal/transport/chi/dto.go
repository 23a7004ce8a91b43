package chi

import (
	"time"

	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/retrieval"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	DocumentID string `json:"document_id,omitempty"`
	Stage      string `json:"stage,omitempty"`
	Class      string `json:"class,omitempty"`
}

// PutDocumentRequest is the body of PUT /documents/{id}.
type PutDocumentRequest struct {
	Name   string `json:"name" validate:"max=512"`
	Format string `json:"format" validate:"omitempty,oneof=txt md"`
	Text   string `json:"text"`
}

// CreateDocumentRequest is the body of POST /documents. An empty id is generated.
type CreateDocumentRequest struct {
	ID     string `json:"id" validate:"omitempty,max=256"`
	Name   string `json:"name" validate:"max=512"`
	Format string `json:"format" validate:"omitempty,oneof=txt md"`
	Text   string `json:"text"`
}

// QueryRequest is the body of POST /query and POST /answer.
type QueryRequest struct {
	Query       string   `json:"query" validate:"required,max=4096"`
	K           int      `json:"k" validate:"gte=0"`
	DocumentIDs []string `json:"document_ids" validate:"max=64,dive,required"`
	MinScore    *float64 `json:"min_score" validate:"omitempty,gte=0,lte=1"`
}

// Document is the registry view of one document.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Format     string    `json:"format,omitempty"`
	Length     int       `json:"length"`
	State      string    `json:"state"`
	LastStage  string    `json:"last_stage,omitempty"`
	ChunkCount int       `json:"chunk_count"`
	Failure    string    `json:"failure,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DocumentListResponse is the body of GET /documents.
type DocumentListResponse struct {
	Items []Document `json:"items"`
	Count int        `json:"count"`
}

// QueryItem is one ranked chunk.
type QueryItem struct {
	DocumentID    string  `json:"document_id"`
	DocumentName  string  `json:"document_name"`
	SequenceIndex int     `json:"sequence_index"`
	Start         int     `json:"start"`
	End           int     `json:"end"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
	Rank          int     `json:"rank"`
}

// QueryResponse is the body of POST /query.
type QueryResponse struct {
	Items []QueryItem `json:"items"`
}

// AnswerResponse is the body of POST /answer.
type AnswerResponse struct {
	Answer  string      `json:"answer"`
	Items   []QueryItem `json:"items"`
	Sources []string    `json:"sources"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func documentToDTO(d document.Document) Document {
	return Document{
		ID:         d.ID(),
		Name:       d.Name(),
		Format:     d.Format(),
		Length:     d.Length(),
		State:      string(d.State()),
		LastStage:  string(d.LastStage()),
		ChunkCount: d.ChunkCount(),
		Failure:    d.Failure(),
		CreatedAt:  d.CreatedAt().UTC(),
		UpdatedAt:  d.UpdatedAt().UTC(),
	}
}

func itemsToDTO(items []retrieval.Item) []QueryItem {
	out := make([]QueryItem, len(items))
	for i, it := range items {
		out[i] = QueryItem{
			DocumentID:    it.DocumentID,
			DocumentName:  it.DocumentName,
			SequenceIndex: it.Seq,
			Start:         it.Start,
			End:           it.End,
			Text:          it.Text,
			Score:         it.Score,
			Rank:          it.Rank,
		}
	}
	return out
}
