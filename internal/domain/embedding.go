package domain

import (
	"context"
	"fmt"
)

// EmbeddingProvider is the external capability that maps texts to vectors.
// Implementations return exactly one vector per input, in input order, or an error for the whole call.
type EmbeddingProvider interface {
	EmbedBatch(ctx context.Context, texts []string) (EmbeddingBatch, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingBatch carries vectors and token usage through the decorator chain.
type EmbeddingBatch struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}

// ProviderFunc adapts a function to EmbeddingProvider.
type ProviderFunc func(ctx context.Context, texts []string) (EmbeddingBatch, error)

// EmbedBatch calls f.
func (f ProviderFunc) EmbedBatch(ctx context.Context, texts []string) (EmbeddingBatch, error) {
	return f(ctx, texts)
}

// InstructionProvider prepends an instruction to every text before delegating.
// Asymmetric embedding models expect different prefixes for documents and queries.
type InstructionProvider struct {
	inner       EmbeddingProvider
	instruction string
}

// NewInstructionProvider wraps inner. An empty instruction returns inner unchanged.
func NewInstructionProvider(inner EmbeddingProvider, instruction string) EmbeddingProvider {
	if instruction == "" {
		return inner
	}
	return &InstructionProvider{inner: inner, instruction: instruction}
}

// EmbedBatch prefixes each text and delegates to the inner provider.
func (p *InstructionProvider) EmbedBatch(ctx context.Context, texts []string) (EmbeddingBatch, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = p.instruction + t
	}
	res, err := p.inner.EmbedBatch(ctx, prefixed)
	if err != nil {
		return EmbeddingBatch{}, fmt.Errorf("instruction embed: %w", err)
	}
	return res, nil
}

// HealthCheck proxies to the inner provider when it supports health checks.
func (p *InstructionProvider) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent proxy
	}
	return nil
}
