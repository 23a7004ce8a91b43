package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

const testDims = 3

func testConfig() Config {
	return Config{
		Dimensions:     testDims,
		BatchSize:      2,
		MaxConcurrency: 2,
		MaxAttempts:    3,
		BackoffBase:    time.Millisecond,
		BackoffCeiling: 10 * time.Millisecond,
	}
}

// vectorFor encodes the text length so tests can check ordering.
func vectorFor(text string) []float32 {
	return []float32{float32(len(text)), 0, 1}
}

func echoProvider(calls *atomic.Int32) domain.ProviderFunc {
	return func(_ context.Context, texts []string) (domain.EmbeddingBatch, error) {
		if calls != nil {
			calls.Add(1)
		}
		vecs := make([][]float32, len(texts))
		for i, t := range texts {
			vecs[i] = vectorFor(t)
		}
		return domain.EmbeddingBatch{Vectors: vecs, TotalTokens: len(texts)}, nil
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func newGateway(t *testing.T, p domain.EmbeddingProvider, cfg Config) *Gateway {
	t.Helper()
	g, err := NewGateway(p, cfg, zap.NewNop(), WithSleep(noSleep))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return g
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dims", func(c *Config) { c.Dimensions = 0 }},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"zero concurrency", func(c *Config) { c.MaxConcurrency = 0 }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"ceiling below base", func(c *Config) { c.BackoffCeiling = 0 }},
		{"negative rps", func(c *Config) { c.RequestsPerSecond = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := NewGateway(echoProvider(nil), cfg, zap.NewNop()); !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestEmbedBatch_PreservesOrderAcrossBatches(t *testing.T) {
	var calls atomic.Int32
	g := newGateway(t, echoProvider(&calls), testConfig())

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := g.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vecs))
	}
	for i, text := range texts {
		if vecs[i][0] != float32(len(text)) {
			t.Errorf("vector %d belongs to another text: %v", i, vecs[i])
		}
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 provider calls for batch size 2, got %d", calls.Load())
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	var calls atomic.Int32
	g := newGateway(t, echoProvider(&calls), testConfig())
	vecs, err := g.EmbedBatch(context.Background(), nil)
	if err != nil || len(vecs) != 0 {
		t.Fatalf("expected empty result, got %v, %v", vecs, err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no provider calls, got %d", calls.Load())
	}
}

func TestEmbedBatch_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	p := domain.ProviderFunc(func(ctx context.Context, texts []string) (domain.EmbeddingBatch, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return echoProvider(nil)(ctx, texts)
	})

	cfg := testConfig()
	cfg.BatchSize = 1
	cfg.MaxConcurrency = 3
	g := newGateway(t, p, cfg)

	texts := make([]string, 12)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}
	if _, err := g.EmbedBatch(context.Background(), texts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak.Load() > 3 {
		t.Errorf("peak concurrency %d exceeds limit 3", peak.Load())
	}
}

func TestEmbedBatch_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	p := domain.ProviderFunc(func(ctx context.Context, texts []string) (domain.EmbeddingBatch, error) {
		if calls.Add(1) < 3 {
			return domain.EmbeddingBatch{}, fmt.Errorf("503: %w", domain.ErrTransientProvider)
		}
		return echoProvider(nil)(ctx, texts)
	})
	g := newGateway(t, p, testConfig())

	if _, err := g.EmbedQuery(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestEmbedBatch_RetryExhausted(t *testing.T) {
	var calls atomic.Int32
	p := domain.ProviderFunc(func(context.Context, []string) (domain.EmbeddingBatch, error) {
		calls.Add(1)
		return domain.EmbeddingBatch{}, fmt.Errorf("429: %w: %w", domain.ErrRateLimited, domain.ErrTransientProvider)
	})
	g := newGateway(t, p, testConfig())

	_, err := g.EmbedQuery(context.Background(), "hello")
	if !errors.Is(err, domain.ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("expected the last provider error to stay in the chain, got %v", err)
	}
	if domain.Classify(err) != domain.ClassTransientProvider {
		t.Errorf("expected transient class, got %s", domain.Classify(err))
	}
	if calls.Load() != 3 {
		t.Errorf("expected max_attempts=3 calls, got %d", calls.Load())
	}
}

func TestEmbedBatch_PermanentFailsFast(t *testing.T) {
	var calls atomic.Int32
	p := domain.ProviderFunc(func(context.Context, []string) (domain.EmbeddingBatch, error) {
		calls.Add(1)
		return domain.EmbeddingBatch{}, fmt.Errorf("401: %w", domain.ErrPermanentProvider)
	})
	g := newGateway(t, p, testConfig())

	_, err := g.EmbedBatch(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrPermanentProvider) {
		t.Fatalf("expected ErrPermanentProvider, got %v", err)
	}
	if errors.Is(err, domain.ErrRetryExhausted) {
		t.Error("permanent errors must not be reported as exhausted retries")
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly one call, got %d", calls.Load())
	}
}

func TestEmbedBatch_DimensionMismatch(t *testing.T) {
	p := domain.ProviderFunc(func(_ context.Context, texts []string) (domain.EmbeddingBatch, error) {
		vecs := make([][]float32, len(texts))
		for i := range vecs {
			vecs[i] = []float32{1, 2}
		}
		return domain.EmbeddingBatch{Vectors: vecs}, nil
	})
	g := newGateway(t, p, testConfig())

	_, err := g.EmbedBatch(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
	if domain.Classify(err) != domain.ClassConfiguration {
		t.Errorf("expected configuration class, got %s", domain.Classify(err))
	}
}

func TestEmbedBatch_WrongVectorCount(t *testing.T) {
	p := domain.ProviderFunc(func(context.Context, []string) (domain.EmbeddingBatch, error) {
		return domain.EmbeddingBatch{Vectors: [][]float32{{1, 2, 3}}}, nil
	})
	g := newGateway(t, p, testConfig())

	_, err := g.EmbedBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrPermanentProvider) {
		t.Fatalf("expected ErrPermanentProvider, got %v", err)
	}
}

func TestEmbedBatch_OneBatchFailsWholeCall(t *testing.T) {
	p := domain.ProviderFunc(func(ctx context.Context, texts []string) (domain.EmbeddingBatch, error) {
		for _, text := range texts {
			if text == "bad" {
				return domain.EmbeddingBatch{}, fmt.Errorf("422: %w", domain.ErrPermanentProvider)
			}
		}
		return echoProvider(nil)(ctx, texts)
	})
	g := newGateway(t, p, testConfig())

	vecs, err := g.EmbedBatch(context.Background(), []string{"a", "b", "c", "bad", "e"})
	if err == nil {
		t.Fatal("expected error")
	}
	if vecs != nil {
		t.Errorf("expected no partial result, got %d vectors", len(vecs))
	}
}

func TestEmbedBatch_CanceledDuringBackoff(t *testing.T) {
	p := domain.ProviderFunc(func(context.Context, []string) (domain.EmbeddingBatch, error) {
		return domain.EmbeddingBatch{}, domain.ErrTransientProvider
	})
	ctx, cancel := context.WithCancel(context.Background())
	g, err := NewGateway(p, testConfig(), zap.NewNop(), WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	_, err = g.EmbedQuery(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEmbedBatch_BackoffDelaysGrow(t *testing.T) {
	var mu sync.Mutex
	var delays []time.Duration
	p := domain.ProviderFunc(func(context.Context, []string) (domain.EmbeddingBatch, error) {
		return domain.EmbeddingBatch{}, domain.ErrTransientProvider
	})
	cfg := testConfig()
	cfg.MaxAttempts = 4
	g, err := NewGateway(p, cfg, zap.NewNop(),
		WithJitter(func(n int64) int64 { return n - 1 }),
		WithSleep(func(_ context.Context, d time.Duration) error {
			mu.Lock()
			delays = append(delays, d)
			mu.Unlock()
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	_, _ = g.EmbedQuery(context.Background(), "x")
	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("expected %d waits, got %d", len(want), len(delays))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("wait %d: got %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestEmbedBatch_RecordsUsage(t *testing.T) {
	g := newGateway(t, echoProvider(nil), testConfig())
	ctx, usage := domain.NewContextWithUsage(context.Background())

	if _, err := g.EmbedBatch(ctx, []string{"a", "b", "c"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage.Calls() != 2 || usage.TotalTokens() != 3 {
		t.Errorf("calls=%d tokens=%d, want 2 and 3", usage.Calls(), usage.TotalTokens())
	}
}

func TestEmbedBatch_RateLimiterPaces(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 1
	cfg.MaxConcurrency = 1
	cfg.RequestsPerSecond = 50
	g := newGateway(t, echoProvider(nil), cfg)

	start := time.Now()
	if _, err := g.EmbedBatch(context.Background(), make([]string, 53)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Burst of 50 then 3 more at 20ms spacing.
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("expected limiter to pace calls, finished in %v", elapsed)
	}
}
