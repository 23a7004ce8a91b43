package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/chunker"
	"github.com/kailas-cloud/docrag/internal/domain/chunk"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/repository/memory"
)

const testDims = 3

// mockEmbedder returns a deterministic vector per text unless fn is set.
type mockEmbedder struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(ctx, texts)
	}
	return fakeVectors(texts), nil
}

func fakeVectors(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), float32(i + 1), 1}
	}
	return out
}

// flakyChunks wraps the memory store and lets tests inject replace failures.
type flakyChunks struct {
	*memory.ChunkStore
	replaceFn func(ctx context.Context, documentID string, records []chunk.Record) error
}

func (f *flakyChunks) ReplaceDocument(ctx context.Context, documentID string, records []chunk.Record) error {
	if f.replaceFn != nil {
		if err := f.replaceFn(ctx, documentID, records); err != nil {
			return err
		}
	}
	return f.ChunkStore.ReplaceDocument(ctx, documentID, records)
}

// recordingRegistry wraps the memory registry and records every saved state.
type recordingRegistry struct {
	*memory.Registry
	mu     sync.Mutex
	states []document.State
}

func (r *recordingRegistry) Save(ctx context.Context, doc *document.Document) error {
	r.mu.Lock()
	r.states = append(r.states, doc.State())
	r.mu.Unlock()
	return r.Registry.Save(ctx, doc)
}

func (r *recordingRegistry) saved() []document.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]document.State(nil), r.states...)
}

type fixture struct {
	svc      *Service
	embedder *mockEmbedder
	chunks   *flakyChunks
	registry *recordingRegistry
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ch, err := chunker.New(10, 2)
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	f := &fixture{
		embedder: &mockEmbedder{},
		chunks:   &flakyChunks{ChunkStore: memory.NewChunkStore(testDims)},
		registry: &recordingRegistry{Registry: memory.NewRegistry()},
	}
	base := []Option{
		WithClock(func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }),
		WithStoreSleep(func(context.Context, time.Duration) error { return nil }),
	}
	f.svc = New(ch, f.embedder, f.chunks, f.registry,
		Config{StoreMaxAttempts: 3, StoreBackoffBase: time.Millisecond, StoreBackoffCeiling: time.Millisecond},
		zap.NewNop(), append(base, opts...)...)
	return f
}

func (f *fixture) stored(t *testing.T, documentID string) []chunk.Scored {
	t.Helper()
	res, err := f.chunks.Search(context.Background(), chunk.SearchQuery{
		Vector: []float32{1, 1, 1}, K: 1000, DocumentIDs: []string{documentID},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	chunk.Sort(res)
	return res
}
