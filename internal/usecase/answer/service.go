// Package answer generates an answer grounded in retrieved context.
package answer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain/retrieval"
	"github.com/kailas-cloud/docrag/internal/usecase/retrieve"
)

// NoContextAnswer is returned without calling the generator when retrieval finds nothing.
const NoContextAnswer = "I could not find any relevant information in the documents for your query."

const systemPrompt = "You answer questions using only the provided document context. " +
	"If the context does not contain the answer, say so. Cite document names when useful."

// Retriever produces the context set for a query.
type Retriever interface {
	Query(ctx context.Context, req retrieve.Request) ([]retrieval.Item, error)
}

// Generator is the generative model collaborator.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Result is a generated answer with the chunks and documents it drew on.
type Result struct {
	Answer  string
	Items   []retrieval.Item
	Sources []string
}

// Service answers questions over indexed documents.
type Service struct {
	retriever Retriever
	generator Generator
	logger    *zap.Logger
}

// New creates an answer service.
func New(r Retriever, g Generator, logger *zap.Logger) *Service {
	return &Service{retriever: r, generator: g, logger: logger}
}

// Answer retrieves context for the question and asks the generator to answer from it.
func (s *Service) Answer(ctx context.Context, req retrieve.Request) (Result, error) {
	items, err := s.retriever.Query(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve: %w", err)
	}
	if len(items) == 0 {
		return Result{Answer: NoContextAnswer}, nil
	}

	text, err := s.generator.Generate(ctx, systemPrompt, BuildPrompt(req.Text, items))
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}
	s.logger.Debug("answer generated", zap.Int("items", len(items)), zap.Int("answer_len", len(text)))
	return Result{Answer: text, Items: items, Sources: retrieval.Sources(items)}, nil
}

// BuildPrompt renders the context items in rank order followed by the question.
func BuildPrompt(question string, items []retrieval.Item) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, it := range items {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		name := it.DocumentName
		if name == "" {
			name = it.DocumentID
		}
		b.WriteString("Document: ")
		b.WriteString(name)
		b.WriteString("\nChunk ")
		b.WriteString(strconv.Itoa(it.Seq))
		b.WriteString(": ")
		b.WriteString(it.Text)
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nAnswer:")
	return b.String()
}
