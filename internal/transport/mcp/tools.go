package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/retrieval"
	"github.com/kailas-cloud/docrag/internal/extract"
	"github.com/kailas-cloud/docrag/internal/usecase/ingest"
	"github.com/kailas-cloud/docrag/internal/usecase/retrieve"
)

// IngestInput is the input schema for the ingest_document tool.
type IngestInput struct {
	DocumentID string `json:"document_id,omitempty" jsonschema:"stable document id; generated when empty"`
	Name       string `json:"name,omitempty" jsonschema:"display name; defaults to the file name or the id"`
	Format     string `json:"format,omitempty" jsonschema:"txt, md, pdf or docx; inferred from the name when empty"`
	Text       string `json:"text,omitempty" jsonschema:"document text; mutually exclusive with path"`
	Path       string `json:"path,omitempty" jsonschema:"local file to read and extract; mutually exclusive with text"`
}

// DocumentOutput describes one registered document.
type DocumentOutput struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Format     string `json:"format,omitempty"`
	State      string `json:"state"`
	ChunkCount int    `json:"chunk_count"`
	Failure    string `json:"failure,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}

// SearchInput is the input schema for the search_documents tool.
type SearchInput struct {
	Query       string   `json:"query" jsonschema:"the text to find similar chunks for"`
	DocumentID  string   `json:"document_id,omitempty" jsonschema:"restrict the search to one document"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict the search to these documents"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of chunks to return (default 5)"`
	MinScore    *float64 `json:"min_score,omitempty" jsonschema:"drop chunks scoring below this similarity"`
}

// ChunkOutput is one ranked chunk.
type ChunkOutput struct {
	DocumentID    string  `json:"document_id"`
	DocumentName  string  `json:"document_name"`
	SequenceIndex int     `json:"sequence_index"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
	Rank          int     `json:"rank"`
}

// SearchOutput is the output schema for the search_documents tool.
type SearchOutput struct {
	Results []ChunkOutput `json:"results"`
	Count   int           `json:"count"`
}

// ListInput is the input schema for the list_documents tool.
type ListInput struct{}

// ListOutput is the output schema for the list_documents tool.
type ListOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DeleteInput is the input schema for the delete_document tool.
type DeleteInput struct {
	DocumentID string `json:"document_id" jsonschema:"id of the document to remove"`
}

// DeleteOutput is the output schema for the delete_document tool.
type DeleteOutput struct {
	DocumentID string `json:"document_id"`
	Deleted    bool   `json:"deleted"`
}

// AnswerInput is the input schema for the answer_question tool.
type AnswerInput struct {
	Question    string   `json:"question" jsonschema:"the question to answer from indexed documents"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict the context to these documents"`
	Limit       int      `json:"limit,omitempty" jsonschema:"number of context chunks (default 5)"`
}

// AnswerOutput is the output schema for the answer_question tool.
type AnswerOutput struct {
	Answer  string        `json:"answer"`
	Sources []string      `json:"sources"`
	Results []ChunkOutput `json:"results"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Chunk, embed and index a document given as text or as a local txt, md, pdf or docx file",
	}, s.handleIngest)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Find the chunks most similar to a query across indexed documents",
	}, s.handleSearch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List indexed documents with their state and chunk count",
	}, s.handleList)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Remove a document and all of its chunks",
	}, s.handleDelete)
	if s.ports.Answerer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "answer_question",
			Description: "Answer a question from the most relevant indexed chunks",
		}, s.handleAnswer)
	}
}

func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	req, err := ingestRequest(input)
	if err != nil {
		return nil, DocumentOutput{}, s.toolError("ingest_document", err)
	}

	doc, err := s.ports.Documents.Ingest(ctx, req)
	if err != nil {
		return nil, DocumentOutput{}, s.toolError("ingest_document", err)
	}
	return nil, documentOutput(doc), nil
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	scope := input.DocumentIDs
	if input.DocumentID != "" {
		scope = append([]string{input.DocumentID}, scope...)
	}

	items, err := s.ports.Retriever.Query(ctx, retrieve.Request{
		Text:        input.Query,
		K:           input.Limit,
		DocumentIDs: scope,
		MinScore:    input.MinScore,
	})
	if err != nil {
		return nil, SearchOutput{}, s.toolError("search_documents", err)
	}

	results := chunkOutputs(items)
	return nil, SearchOutput{Results: results, Count: len(results)}, nil
}

func (s *Server) handleList(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListInput,
) (*mcp.CallToolResult, ListOutput, error) {
	docs, err := s.ports.Documents.List(ctx)
	if err != nil {
		return nil, ListOutput{}, s.toolError("list_documents", err)
	}

	out := ListOutput{Documents: make([]DocumentOutput, len(docs)), Count: len(docs)}
	for i, d := range docs {
		out.Documents[i] = documentOutput(d)
	}
	return nil, out, nil
}

func (s *Server) handleDelete(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DeleteInput,
) (*mcp.CallToolResult, DeleteOutput, error) {
	if err := s.ports.Documents.Delete(ctx, input.DocumentID); err != nil {
		return nil, DeleteOutput{}, s.toolError("delete_document", err)
	}
	return nil, DeleteOutput{DocumentID: input.DocumentID, Deleted: true}, nil
}

func (s *Server) handleAnswer(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnswerInput,
) (*mcp.CallToolResult, AnswerOutput, error) {
	res, err := s.ports.Answerer.Answer(ctx, retrieve.Request{
		Text:        input.Question,
		K:           input.Limit,
		DocumentIDs: input.DocumentIDs,
	})
	if err != nil {
		return nil, AnswerOutput{}, s.toolError("answer_question", err)
	}

	sources := res.Sources
	if sources == nil {
		sources = []string{}
	}
	return nil, AnswerOutput{Answer: res.Answer, Sources: sources, Results: chunkOutputs(res.Items)}, nil
}

// toolError tags err with its class so clients can tell retryable failures apart.
func (s *Server) toolError(tool string, err error) error {
	class := domain.Classify(err)
	s.logger.Warn("tool call failed",
		zap.String("tool", tool), zap.String("class", string(class)), zap.Error(err))
	return fmt.Errorf("%s (%s): %w", tool, class, err)
}

func ingestRequest(input IngestInput) (ingest.Request, error) {
	if input.Path != "" && input.Text != "" {
		return ingest.Request{}, fmt.Errorf("text and path are mutually exclusive: %w", domain.ErrInvalidRequest)
	}
	req := ingest.Request{DocumentID: input.DocumentID, Name: input.Name}

	if input.Path == "" {
		format := extract.FormatText
		if input.Format != "" {
			f, err := extract.ParseFormat(input.Format)
			if err != nil {
				return ingest.Request{}, err //nolint:wrapcheck // already carries ErrInvalidRequest
			}
			format = f
		}
		if format.Binary() {
			return ingest.Request{}, fmt.Errorf("%s documents must be given as a path: %w", format, domain.ErrInvalidRequest)
		}
		req.Format = string(format)
		req.Text = input.Text
		return req, nil
	}

	if req.Name == "" {
		req.Name = filepath.Base(input.Path)
	}
	format, err := fileFormat(input.Format, input.Path)
	if err != nil {
		return ingest.Request{}, err
	}
	data, err := readFile(input.Path)
	if err != nil {
		return ingest.Request{}, err
	}
	text, err := extract.Extract(format, data)
	if err != nil {
		return ingest.Request{}, fmt.Errorf("extract %s: %w", input.Path, err)
	}
	req.Format = string(format)
	req.Text = text
	return req, nil
}

func fileFormat(explicit, path string) (extract.Format, error) {
	if explicit != "" {
		return extract.ParseFormat(explicit) //nolint:wrapcheck // already carries ErrInvalidRequest
	}
	return extract.FormatFromName(path) //nolint:wrapcheck // already carries ErrInvalidRequest
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file %s: %w", path, domain.ErrInvalidRequest)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", path, domain.ErrInvalidRequest)
	}
	if info.Size() > extract.MaxFileSize {
		return nil, fmt.Errorf("file %s too large (max %d bytes): %w", path, extract.MaxFileSize, domain.ErrInvalidRequest)
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the local operator
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func documentOutput(d document.Document) DocumentOutput {
	return DocumentOutput{
		DocumentID: d.ID(),
		Name:       d.Name(),
		Format:     d.Format(),
		State:      string(d.State()),
		ChunkCount: d.ChunkCount(),
		Failure:    d.Failure(),
		UpdatedAt:  d.UpdatedAt().UTC().Format(time.RFC3339),
	}
}

func chunkOutputs(items []retrieval.Item) []ChunkOutput {
	out := make([]ChunkOutput, len(items))
	for i, it := range items {
		out[i] = ChunkOutput{
			DocumentID:    it.DocumentID,
			DocumentName:  it.DocumentName,
			SequenceIndex: it.Seq,
			Text:          it.Text,
			Score:         it.Score,
			Rank:          it.Rank,
		}
	}
	return out
}
