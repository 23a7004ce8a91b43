package retrieve

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/chunk"
	"github.com/kailas-cloud/docrag/internal/domain/document"
)

type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return m.vec, m.err
}

type mockSearcher struct {
	results []chunk.Scored
	err     error
	last    chunk.SearchQuery
}

func (m *mockSearcher) Search(_ context.Context, q chunk.SearchQuery) ([]chunk.Scored, error) {
	m.last = q
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

type mockDocs struct {
	docs map[string]document.Document
	err  error
}

func (m *mockDocs) Get(_ context.Context, id string) (document.Document, error) {
	if m.err != nil {
		return document.Document{}, m.err
	}
	d, ok := m.docs[id]
	if !ok {
		return document.Document{}, domain.ErrDocumentNotFound
	}
	return d, nil
}

func newDocs(t *testing.T, ids ...string) *mockDocs {
	t.Helper()
	m := &mockDocs{docs: make(map[string]document.Document)}
	for _, id := range ids {
		d, err := document.New(id, "Doc "+id, "txt", 100, time.Now())
		if err != nil {
			t.Fatalf("new document: %v", err)
		}
		m.docs[id] = d
	}
	return m
}

func scored(t *testing.T, doc string, seq int, text string, score float64) chunk.Scored {
	t.Helper()
	c, err := chunk.New(doc, seq, seq*10, seq*10+len(text), text)
	if err != nil {
		t.Fatalf("new chunk: %v", err)
	}
	return chunk.Scored{Chunk: c, Score: score}
}

func newService(emb QueryEmbedder, s Searcher, docs DocumentReader) *Service {
	return New(emb, s, docs, Config{DefaultK: 5, MaxK: 50, Overfetch: 2}, zap.NewNop())
}

// constVectors embeds every text as the same vector.
type constVectors []float32

func (v constVectors) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = v
	}
	return out, nil
}
