package embcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/db"
	"github.com/kailas-cloud/docrag/internal/domain"
)

// mockProvider records every batch it receives.
type mockProvider struct {
	vector func(text string) []float32
	err    error
	calls  [][]string
}

func (m *mockProvider) EmbedBatch(_ context.Context, texts []string) (domain.EmbeddingBatch, error) {
	m.calls = append(m.calls, texts)
	if m.err != nil {
		return domain.EmbeddingBatch{}, m.err
	}
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = m.vector(t)
	}
	return domain.EmbeddingBatch{Vectors: vecs, TotalTokens: len(texts)}, nil
}

// memoryKV implements the consumer interface with a map.
type memoryKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memoryKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func lengthVector(text string) []float32 {
	return []float32{float32(len(text)), 1}
}

func newTestCache(t *testing.T, model string) (*CachedProvider, *mockProvider, *memoryKV) {
	t.Helper()
	inner := &mockProvider{vector: lengthVector}
	kv := newMemoryKV()
	return New(inner, kv, model, 2, time.Hour, nil, zap.NewNop()), inner, kv
}
