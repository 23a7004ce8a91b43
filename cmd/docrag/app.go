package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/chunker"
	"github.com/kailas-cloud/docrag/internal/config"
	dbredis "github.com/kailas-cloud/docrag/internal/db/redis"
	"github.com/kailas-cloud/docrag/internal/domain"
	logpkg "github.com/kailas-cloud/docrag/internal/logger"
	"github.com/kailas-cloud/docrag/internal/metrics"
	chunkrepo "github.com/kailas-cloud/docrag/internal/repository/chunk"
	documentrepo "github.com/kailas-cloud/docrag/internal/repository/document"
	"github.com/kailas-cloud/docrag/internal/repository/embcache"
	"github.com/kailas-cloud/docrag/internal/repository/memory"
	"github.com/kailas-cloud/docrag/internal/repository/pgvector"
	openaiTransport "github.com/kailas-cloud/docrag/internal/transport/openai"
	"github.com/kailas-cloud/docrag/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/docrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/docrag/internal/usecase/health"
	"github.com/kailas-cloud/docrag/internal/usecase/ingest"
	"github.com/kailas-cloud/docrag/internal/usecase/retrieve"
	"github.com/kailas-cloud/docrag/internal/version"
)

const (
	healthProbeTimeout  = 5 * time.Second
	storeBackoffBase    = 100 * time.Millisecond
	storeBackoffCeiling = 2 * time.Second
)

// app is the composition root shared by the serve and mcp commands.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	documents *ingest.Service
	retriever *retrieve.Service
	answerer  *answer.Service // nil when generation.model is empty
	health    *healthuc.Service
	closers   []func()
}

// chunkBackend is the chunk store contract every driver satisfies.
type chunkBackend interface {
	ingest.ChunkStore
	retrieve.Searcher
}

// cacheStore is the key-value surface the embedding cache needs.
type cacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// backend is the storage side of one database driver.
type backend struct {
	chunks   chunkBackend
	registry ingest.Registry
	cache    cacheStore // nil when the driver has no key-value store
	probe    healthuc.Component
	close    func()
}

// loadApp reads config/{env}.yaml, builds the logger and wires the app.
func loadApp(ctx context.Context, env string) (*app, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("Starting docrag",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	a.closers = append([]func(){func() { _ = logger.Sync() }}, a.closers...)
	return a, nil
}

// newApp wires storage, the embedding chain and the use cases from cfg.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	domain.KeyPrefix = cfg.Storage.KeyPrefix

	// Explicit registration, no init().
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closers: []func(){be.close}}

	docGateway, err := buildGateway(cfg.Embedding, cfg.Embedding.DocumentInstruction, be.cache, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("document embedding gateway: %w", err)
	}
	queryGateway, err := buildGateway(cfg.Embedding, cfg.Embedding.QueryInstruction, be.cache, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("query embedding gateway: %w", err)
	}

	var chunkOpts []chunker.Option
	if cfg.Chunking.BoundaryLookback > 0 {
		chunkOpts = append(chunkOpts, chunker.WithBoundaries(cfg.Chunking.BoundaryLookback))
	}
	ch, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap, chunkOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("chunker: %w", err)
	}

	a.documents = ingest.New(ch, docGateway, be.chunks, be.registry, ingest.Config{
		StoreMaxAttempts:    cfg.Ingest.StoreMaxAttempts,
		StoreBackoffBase:    storeBackoffBase,
		StoreBackoffCeiling: storeBackoffCeiling,
	}, logger.Named("ingest"))
	a.retriever = retrieve.New(queryGateway, be.chunks, be.registry, retrieve.Config{
		DefaultK:  cfg.Retrieval.DefaultK,
		MaxK:      cfg.Retrieval.MaxK,
		Overfetch: cfg.Retrieval.Overfetch,
		MinScore:  cfg.Retrieval.MinScore,
	}, logger.Named("retrieve"))

	components := []healthuc.Component{be.probe, healthuc.Embedding(docGateway)}
	if cfg.Generation.Model != "" {
		gen := buildGenerator(cfg, logger)
		a.answerer = answer.New(a.retriever, gen, logger.Named("answer"))
		components = append(components, healthuc.Generation(gen))
	}
	a.health = healthuc.New(healthProbeTimeout, components...)

	logger.Info("Pipeline ready",
		zap.Int("chunk_size", cfg.Chunking.Size),
		zap.Int("chunk_overlap", cfg.Chunking.Overlap),
		zap.Int("batch_size", cfg.Embedding.BatchSize),
		zap.Bool("embedding_cache", be.cache != nil && cfg.Embedding.Cache.Enabled),
		zap.Bool("answer_generation", a.answerer != nil),
	)
	return a, nil
}

// Close releases storage connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (backend, error) {
	dims := cfg.Embedding.Dimensions
	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second

	switch cfg.Database.Driver {
	case config.DriverValkey, config.DriverRedis:
		store, err := dbredis.NewStore(dbredis.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return backend{}, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return backend{}, fmt.Errorf("database not ready: %w", err)
		}
		chunks := chunkrepo.New(store, dims, chunkrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		})
		if err := chunks.EnsureIndex(ctx); err != nil {
			store.Close()
			return backend{}, fmt.Errorf("ensure chunk index: %w", err)
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))
		return backend{
			chunks:   chunks,
			registry: documentrepo.New(store),
			cache:    store,
			probe:    healthuc.Storage(store),
			close:    store.Close,
		}, nil

	case config.DriverPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, readiness)
		defer cancel()
		pool, err := pgvector.Connect(connectCtx, cfg.Database.DSN)
		if err != nil {
			return backend{}, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pgvector.Migrate(ctx, pool, dims); err != nil {
			pool.Close()
			return backend{}, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("Connected to postgres")
		return backend{
			chunks:   pgvector.NewChunkStore(pool, dims),
			registry: pgvector.NewRegistry(pool),
			probe:    healthuc.Storage(pool),
			close:    pool.Close,
		}, nil

	case config.DriverMemory:
		logger.Warn("Using in-memory storage; documents are lost on exit")
		return backend{
			chunks:   memory.NewChunkStore(dims),
			registry: memory.NewRegistry(),
			probe: healthuc.Component{
				Name:     "storage",
				Critical: true,
				Probe:    func(context.Context) error { return nil },
			},
			close: func() {},
		}, nil

	default:
		return backend{}, fmt.Errorf("unknown database driver %q: %w", cfg.Database.Driver, domain.ErrInvalidConfig)
	}
}

// buildGateway assembles the provider chain: OpenAI -> cache -> instruction -> gateway.
// The instruction wraps the cache so document and query vectors never share entries.
func buildGateway(
	cfg config.EmbeddingConfig,
	instruction string,
	cache cacheStore,
	logger *zap.Logger,
) (*embeddinguc.Gateway, error) {
	var provider domain.EmbeddingProvider = openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	if cache != nil && cfg.Cache.Enabled {
		ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
		provider = embcache.New(provider, cache, cfg.Model, cfg.Dimensions, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	provider = domain.NewInstructionProvider(provider, instruction)

	gw, err := embeddinguc.NewGateway(provider, embeddinguc.Config{
		Dimensions:        cfg.Dimensions,
		BatchSize:         cfg.BatchSize,
		MaxConcurrency:    cfg.MaxConcurrency,
		MaxAttempts:       cfg.MaxAttempts,
		BackoffBase:       cfg.BackoffBase(),
		BackoffCeiling:    cfg.BackoffCeiling(),
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, logger.Named("embedding"))
	if err != nil {
		return nil, fmt.Errorf("create gateway: %w", err)
	}
	return gw, nil
}

// buildGenerator creates the chat model client. Credentials and endpoint fall back to the
// embedding provider's.
func buildGenerator(cfg config.Config, logger *zap.Logger) *openaiTransport.Generator {
	apiKey := cfg.Generation.APIKey
	if apiKey == "" {
		apiKey = cfg.Embedding.APIKey
	}
	baseURL := cfg.Generation.BaseURL
	if baseURL == "" {
		baseURL = cfg.Embedding.BaseURL
	}
	return openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		Config: openaiTransport.Config{
			APIKey:   apiKey,
			BaseURL:  baseURL,
			Model:    cfg.Generation.Model,
			Provider: cfg.Embedding.Provider,
			Logger:   logger,
		},
		MaxTokens: cfg.Generation.MaxTokens,
	})
}
