// Package embedding implements the embedding gateway: batching, bounded concurrent dispatch,
// retry with backoff, proactive rate limiting and dimension checks in front of a provider.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/metrics"
	"github.com/kailas-cloud/docrag/internal/retry"
)

// Config tunes the gateway.
type Config struct {
	Dimensions     int
	BatchSize      int
	MaxConcurrency int
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCeiling time.Duration
	// RequestsPerSecond enables a proactive token bucket when positive.
	RequestsPerSecond float64
}

// Validate rejects parameters the gateway cannot operate with.
func (c Config) Validate() error {
	switch {
	case c.Dimensions <= 0:
		return fmt.Errorf("dimensions must be positive, got %d: %w", c.Dimensions, domain.ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("batch size must be positive, got %d: %w", c.BatchSize, domain.ErrInvalidConfig)
	case c.MaxConcurrency <= 0:
		return fmt.Errorf("max concurrency must be positive, got %d: %w", c.MaxConcurrency, domain.ErrInvalidConfig)
	case c.MaxAttempts <= 0:
		return fmt.Errorf("max attempts must be positive, got %d: %w", c.MaxAttempts, domain.ErrInvalidConfig)
	case c.BackoffBase < 0 || c.BackoffCeiling < c.BackoffBase:
		return fmt.Errorf("backoff ceiling %v must be >= base %v: %w",
			c.BackoffCeiling, c.BackoffBase, domain.ErrInvalidConfig)
	case c.RequestsPerSecond < 0:
		return fmt.Errorf("requests per second must be non-negative: %w", domain.ErrInvalidConfig)
	}
	return nil
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gateway) { g.sleep = sleep }
}

// WithJitter replaces the backoff jitter source.
func WithJitter(jitter func(n int64) int64) Option {
	return func(g *Gateway) { g.backoff.Jitter = jitter }
}

// Gateway turns texts into vectors.
type Gateway struct {
	provider domain.EmbeddingProvider
	cfg      Config
	backoff  retry.Backoff
	limiter  *rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *zap.Logger
}

// NewGateway validates cfg and wraps provider.
func NewGateway(provider domain.EmbeddingProvider, cfg Config, logger *zap.Logger, opts ...Option) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Gateway{
		provider: provider,
		cfg:      cfg,
		backoff:  retry.Backoff{Base: cfg.BackoffBase, Ceiling: cfg.BackoffCeiling},
		sleep:    retry.Sleep,
		logger:   logger,
	}
	if cfg.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, int(cfg.RequestsPerSecond)))
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Dimensions returns the vector dimension every result has.
func (g *Gateway) Dimensions() int { return g.cfg.Dimensions }

// EmbedQuery embeds a single text.
func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns exactly one vector per text, in input order, or one error for the whole call.
// Provider calls carry at most BatchSize texts and run with at most MaxConcurrency in flight.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.MaxConcurrency)

	for batch, offset := 0, 0; offset < len(texts); batch, offset = batch+1, offset+g.cfg.BatchSize {
		end := min(offset+g.cfg.BatchSize, len(texts))
		eg.Go(func() error {
			vecs, err := g.embedWithRetry(egCtx, batch, texts[offset:end])
			if err != nil {
				return err
			}
			copy(out[offset:end], vecs)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues(string(domain.Classify(err))).Inc()
		return nil, err
	}
	return out, nil
}

func (g *Gateway) embedWithRetry(ctx context.Context, batch int, texts []string) ([][]float32, error) {
	for attempt := 1; ; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("batch %d: rate limiter wait: %w", batch, err)
			}
		}

		vecs, err := g.embedOnce(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("batch %d: %w", batch, ctxErr)
		}
		if !isTransient(err) {
			return nil, fmt.Errorf("batch %d: %w", batch, err)
		}
		if attempt >= g.cfg.MaxAttempts {
			return nil, fmt.Errorf("batch %d after %d attempts: %w: %w", batch, attempt, domain.ErrRetryExhausted, err)
		}

		delay := g.backoff.Delay(attempt)
		metrics.EmbeddingRetriesTotal.Inc()
		g.logger.Warn("Embedding batch failed, retrying",
			zap.Int("batch", batch),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Bool("rate_limited", errors.Is(err, domain.ErrRateLimited)),
			zap.Error(err),
		)
		if err := g.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("batch %d: backoff wait: %w", batch, err)
		}
	}
}

func (g *Gateway) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := g.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("provider embed: %w", err)
	}
	if len(res.Vectors) != len(texts) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts: %w",
			len(res.Vectors), len(texts), domain.ErrPermanentProvider)
	}
	for i, v := range res.Vectors {
		if len(v) != g.cfg.Dimensions {
			return nil, fmt.Errorf("vector %d has dimension %d, index expects %d: %w",
				i, len(v), g.cfg.Dimensions, domain.ErrVectorDimMismatch)
		}
	}
	domain.UsageFromContext(ctx).Record(res.TotalTokens)
	return res.Vectors, nil
}

func isTransient(err error) bool {
	return errors.Is(err, domain.ErrTransientProvider) || errors.Is(err, domain.ErrRateLimited)
}

// HealthCheck proxies to the provider when it supports health checks.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	if hc, ok := g.provider.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent proxy
	}
	return nil
}
