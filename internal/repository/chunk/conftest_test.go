package chunk

import (
	"context"
	"testing"

	"github.com/kailas-cloud/docrag/internal/db"
	domchunk "github.com/kailas-cloud/docrag/internal/domain/chunk"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	scanFn        func(ctx context.Context, pattern string) ([]string, error)
	atomicFn      func(ctx context.Context, b db.Batch) (int, error)
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) Atomic(ctx context.Context, b db.Batch) (int, error) {
	if m.atomicFn != nil {
		return m.atomicFn(ctx, b)
	}
	return len(b.Deletes), nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

const testDims = 3

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, testDims, HNSWConfig{M: 16, EFConstruct: 200}), ms
}

func record(t *testing.T, doc string, seq int, text string) domchunk.Record {
	t.Helper()
	c, err := domchunk.New(doc, seq, seq*10, seq*10+len(text), text)
	if err != nil {
		t.Fatalf("new chunk: %v", err)
	}
	return domchunk.Record{Chunk: c, Vector: []float32{1, 0, float32(seq)}}
}
