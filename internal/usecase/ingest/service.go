// Package ingest drives documents through chunking, embedding and indexing.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/chunk"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	logpkg "github.com/kailas-cloud/docrag/internal/logger"
	"github.com/kailas-cloud/docrag/internal/metrics"
	"github.com/kailas-cloud/docrag/internal/retry"
)

// failureSaveTimeout bounds the registry write that records a failure after ctx is done.
const failureSaveTimeout = 5 * time.Second

// Request is one document to ingest. An empty DocumentID gets a generated one.
type Request struct {
	DocumentID string
	Name       string
	Format     string
	Text       string
}

// Config tunes store write retries.
type Config struct {
	StoreMaxAttempts    int
	StoreBackoffBase    time.Duration
	StoreBackoffCeiling time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the UUID generator for documents without an ID.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithStoreSleep replaces the wait between store retries, mainly for tests.
func WithStoreSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) { s.storeRetry.Sleep = sleep }
}

// Service is the ingestion orchestrator.
type Service struct {
	chunker    Chunker
	embedder   Embedder
	chunks     ChunkStore
	registry   Registry
	storeRetry retry.Policy
	inflight   *inflight
	now        func() time.Time
	newID      func() string
	logger     *zap.Logger
}

// New creates an ingestion service.
func New(
	ch Chunker, emb Embedder, chunks ChunkStore, reg Registry,
	cfg Config, logger *zap.Logger, opts ...Option,
) *Service {
	s := &Service{
		chunker:  ch,
		embedder: emb,
		chunks:   chunks,
		registry: reg,
		inflight: newInflight(),
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logger,
	}
	s.storeRetry = retry.Policy{
		MaxAttempts: max(cfg.StoreMaxAttempts, 1),
		Backoff:     retry.Backoff{Base: cfg.StoreBackoffBase, Ceiling: cfg.StoreBackoffCeiling},
		Retryable:   func(err error) bool { return errors.Is(err, domain.ErrStore) },
		OnRetry: func(attempt int, delay time.Duration, err error) {
			s.logger.Warn("store write failed, retrying",
				zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ingest chunks, embeds and indexes a document. On success the document is ready and its
// previous chunk set, if any, has been replaced in one step. On failure a previous ready
// version stays queryable and the error is an *Error.
func (s *Service) Ingest(ctx context.Context, req Request) (document.Document, error) {
	id := req.DocumentID
	if id == "" {
		id = s.newID()
	}
	doc, err := document.New(id, req.Name, req.Format, utf8.RuneCountInString(req.Text), s.now())
	if err != nil {
		return document.Document{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	if !s.inflight.acquire(id) {
		return document.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrIngestInProgress)
	}
	defer s.inflight.release(id)

	start := time.Now()
	ctx, usage := domain.NewContextWithUsage(ctx)
	log := logpkg.FromContext(ctx, s.logger).With(zap.String("document_id", id))

	prev, err := s.registry.Get(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDocumentNotFound):
		prev = document.Document{}
	default:
		ierr := newError(&doc, fmt.Errorf("load previous version: %w", err))
		s.observe(ierr, 0, start)
		return document.Document{}, ierr
	}
	// A ready version keeps serving until the new one replaces it.
	track := !prev.IsReady()

	n, err := s.run(ctx, &doc, req.Text, track)
	if err != nil {
		ierr := newError(&doc, err)
		s.recordFailure(ctx, &doc, ierr, track, log)
		s.observe(ierr, 0, start)
		return document.Document{}, ierr
	}

	s.observe(nil, n, start)
	log.Info("document ingested",
		zap.Int("chunks", n),
		zap.Int("tokens", usage.TotalTokens()),
		zap.Int("embedding_calls", usage.Calls()),
		zap.Duration("duration", time.Since(start)),
	)
	return doc, nil
}

func (s *Service) run(ctx context.Context, doc *document.Document, text string, track bool) (int, error) {
	if err := s.advance(ctx, doc, document.StateChunking, track); err != nil {
		return 0, err
	}
	chunks, err := s.chunker.Split(doc.ID(), text)
	if err != nil {
		return 0, fmt.Errorf("chunk: %w", err)
	}

	if err := s.advance(ctx, doc, document.StateEmbedding, track); err != nil {
		return 0, err
	}
	records, err := s.embed(ctx, chunks)
	if err != nil {
		return 0, err
	}

	if err := s.advance(ctx, doc, document.StateIndexing, track); err != nil {
		return 0, err
	}
	if err := s.storeRetry.Do(ctx, func(ctx context.Context) error {
		return s.chunks.ReplaceDocument(ctx, doc.ID(), records)
	}); err != nil {
		return 0, fmt.Errorf("index: %w", err)
	}

	// Work on a copy so a failed save leaves doc in indexing, where Fail is still legal.
	ready := *doc
	ready.SetChunkCount(len(records))
	if err := ready.Advance(document.StateReady, s.now()); err != nil {
		return 0, fmt.Errorf("lifecycle: %w", err)
	}
	if err := s.save(ctx, &ready); err != nil {
		return 0, err
	}
	*doc = ready
	return len(records), nil
}

// advance checks for cancellation, moves doc to the next stage and persists it when tracked.
func (s *Service) advance(ctx context.Context, doc *document.Document, to document.State, track bool) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("before %s: %w", to, err)
	}
	if err := doc.Advance(to, s.now()); err != nil {
		return fmt.Errorf("lifecycle: %w", err)
	}
	if !track {
		return nil
	}
	return s.save(ctx, doc)
}

func (s *Service) embed(ctx context.Context, chunks []chunk.Chunk) ([]chunk.Record, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text()
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed: got %d vectors for %d chunks: %w",
			len(vectors), len(chunks), domain.ErrPermanentProvider)
	}
	records := make([]chunk.Record, len(chunks))
	for i := range chunks {
		records[i] = chunk.Record{Chunk: chunks[i], Vector: vectors[i]}
	}
	return records, nil
}

func (s *Service) save(ctx context.Context, doc *document.Document) error {
	if err := s.storeRetry.Do(ctx, func(ctx context.Context) error {
		return s.registry.Save(ctx, doc)
	}); err != nil {
		return fmt.Errorf("save %s record: %w", doc.State(), err)
	}
	return nil
}

// recordFailure persists a failed record unless a ready version must be kept.
func (s *Service) recordFailure(ctx context.Context, doc *document.Document, ierr *Error, track bool, log *zap.Logger) {
	log.Warn("ingestion failed",
		zap.String("stage", string(ierr.Stage)),
		zap.String("error_class", string(ierr.Class)),
		zap.Error(ierr.Err),
	)
	if !track {
		return
	}
	if err := doc.Fail(ierr.Err.Error(), s.now()); err != nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureSaveTimeout)
	defer cancel()
	if err := s.registry.Save(saveCtx, doc); err != nil {
		log.Error("failed to record ingestion failure", zap.Error(err))
	}
}

func (s *Service) observe(ierr *Error, chunks int, start time.Time) {
	result := string(document.StateReady)
	if ierr != nil {
		result = string(ierr.Class)
	}
	metrics.IngestTotal.WithLabelValues(result).Inc()
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	if ierr == nil {
		metrics.IngestChunks.Observe(float64(chunks))
	}
}

// Get returns a document by ID.
func (s *Service) Get(ctx context.Context, id string) (document.Document, error) {
	doc, err := s.registry.Get(ctx, id)
	if err != nil {
		return document.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// List returns every registered document sorted by ID.
func (s *Service) List(ctx context.Context) ([]document.Document, error) {
	docs, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document's chunks, then its registry record.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !s.inflight.acquire(id) {
		return fmt.Errorf("document %s: %w", id, domain.ErrIngestInProgress)
	}
	defer s.inflight.release(id)

	if _, err := s.registry.Get(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	var removed int
	if err := s.storeRetry.Do(ctx, func(ctx context.Context) error {
		n, err := s.chunks.DeleteByDocument(ctx, id)
		removed = n
		return err
	}); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.storeRetry.Do(ctx, func(ctx context.Context) error {
		return s.registry.Delete(ctx, id)
	}); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	logpkg.FromContext(ctx, s.logger).Info("document deleted", zap.String("document_id", id), zap.Int("chunks", removed))
	return nil
}
