// Package retrieve turns a query into a ranked, deduplicated context set.
package retrieve

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/chunk"
	"github.com/kailas-cloud/docrag/internal/domain/retrieval"
	logpkg "github.com/kailas-cloud/docrag/internal/logger"
	"github.com/kailas-cloud/docrag/internal/metrics"
)

// Config holds retrieval defaults and limits.
type Config struct {
	DefaultK  int
	MaxK      int
	Overfetch int
	MinScore  float64
}

// Request is a query. Zero K uses the default; nil MinScore uses the configured floor.
type Request struct {
	Text        string
	K           int
	DocumentIDs []string
	MinScore    *float64
}

// Service is the retrieval orchestrator.
type Service struct {
	embedder QueryEmbedder
	searcher Searcher
	docs     DocumentReader
	cfg      Config
	logger   *zap.Logger
}

// New creates a retrieval service.
func New(emb QueryEmbedder, s Searcher, docs DocumentReader, cfg Config, logger *zap.Logger) *Service {
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = 5
	}
	if cfg.Overfetch < 1 {
		cfg.Overfetch = 1
	}
	return &Service{embedder: emb, searcher: s, docs: docs, cfg: cfg, logger: logger}
}

// Query embeds the text, searches k*overfetch candidates, drops duplicate texts keeping the
// best score, applies the score floor and returns at most k items ranked from 1.
// Query errors return no partial results.
func (s *Service) Query(ctx context.Context, req Request) ([]retrieval.Item, error) {
	items, err := s.query(ctx, req)
	result := "ok"
	if err != nil {
		result = string(domain.Classify(err))
	}
	metrics.QueryTotal.WithLabelValues(result).Inc()
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) query(ctx context.Context, req Request) ([]retrieval.Item, error) {
	k := req.K
	if k == 0 {
		k = s.cfg.DefaultK
	}
	minScore := s.cfg.MinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}
	r, err := retrieval.NewRequest(req.Text, k, s.cfg.MaxK, req.DocumentIDs, minScore)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	names := make(map[string]string)
	for _, id := range r.DocumentIDs() {
		doc, err := s.docs.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("scope %s: %w", id, err)
		}
		names[id] = doc.Name()
	}

	vec, err := s.embedder.EmbedQuery(ctx, r.Text())
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.searcher.Search(ctx, chunk.SearchQuery{
		Vector:      vec,
		K:           r.K() * s.cfg.Overfetch,
		DocumentIDs: r.DocumentIDs(),
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	ranked := Rank(candidates, r.K(), r.MinScore())
	items := make([]retrieval.Item, len(ranked))
	for i, sc := range ranked {
		name, err := s.documentName(ctx, names, sc.Chunk.DocumentID())
		if err != nil {
			return nil, err
		}
		items[i] = retrieval.NewItem(sc, i+1, name)
	}

	logpkg.FromContext(ctx, s.logger).Debug("query served",
		zap.Int("k", r.K()),
		zap.Int("candidates", len(candidates)),
		zap.Int("items", len(items)),
		zap.Strings("document_ids", r.DocumentIDs()),
	)
	return items, nil
}

// documentName resolves and memoizes a display name. A document deleted after the search
// falls back to its ID.
func (s *Service) documentName(ctx context.Context, names map[string]string, id string) (string, error) {
	if n, ok := names[id]; ok {
		return n, nil
	}
	doc, err := s.docs.Get(ctx, id)
	switch {
	case err == nil:
		names[id] = doc.Name()
	case errors.Is(err, domain.ErrDocumentNotFound):
		names[id] = id
	default:
		return "", fmt.Errorf("resolve document %s: %w", id, err)
	}
	return names[id], nil
}

// Rank deduplicates candidates by fingerprint, keeping the highest score and, on equal
// scores, the earliest candidate. A positive minScore drops survivors below it; the rest
// are ordered with chunk.Less and truncated to k.
func Rank(candidates []chunk.Scored, k int, minScore float64) []chunk.Scored {
	best := make(map[string]int, len(candidates))
	kept := make([]chunk.Scored, 0, len(candidates))
	for _, c := range candidates {
		fp := c.Chunk.Fingerprint()
		if i, ok := best[fp]; ok {
			if c.Score > kept[i].Score {
				kept[i] = c
			}
			continue
		}
		best[fp] = len(kept)
		kept = append(kept, c)
	}

	out := kept[:0]
	for _, c := range kept {
		if minScore <= 0 || c.Score >= minScore {
			out = append(out, c)
		}
	}
	chunk.Sort(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}
