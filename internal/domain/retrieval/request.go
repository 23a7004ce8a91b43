// Package retrieval holds the query-time types: validated requests and context items.
package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/docrag/internal/domain/document"
)

// Query limits.
const (
	// MaxQueryLength is the maximum query length in bytes.
	MaxQueryLength = 4096
	// MaxScopeSize is the maximum number of documents a query may be scoped to.
	MaxScopeSize = 64
)

// Request is a validated retrieval query.
type Request struct {
	text        string
	k           int
	documentIDs []string
	minScore    float64
}

// NewRequest validates query parameters. k must be in [1, maxK]; minScore in [0, 1].
// The document scope is deduplicated and sorted.
func NewRequest(text string, k, maxK int, documentIDs []string, minScore float64) (Request, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Request{}, fmt.Errorf("query is required")
	}
	if len(text) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if k <= 0 {
		return Request{}, fmt.Errorf("k must be positive, got %d", k)
	}
	if maxK > 0 && k > maxK {
		return Request{}, fmt.Errorf("k must be at most %d, got %d", maxK, k)
	}
	if minScore < 0 || minScore > 1 {
		return Request{}, fmt.Errorf("min_score must be between 0 and 1")
	}
	if len(documentIDs) > MaxScopeSize {
		return Request{}, fmt.Errorf("too many documents in scope (max %d)", MaxScopeSize)
	}

	var scope []string
	if len(documentIDs) > 0 {
		seen := make(map[string]struct{}, len(documentIDs))
		for _, id := range documentIDs {
			if err := document.ValidateID(id); err != nil {
				return Request{}, fmt.Errorf("scope: %w", err)
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			scope = append(scope, id)
		}
		sort.Strings(scope)
	}

	return Request{text: text, k: k, documentIDs: scope, minScore: minScore}, nil
}

// Text returns the trimmed query text.
func (r *Request) Text() string { return r.text }

// K returns the number of context items requested.
func (r *Request) K() int { return r.k }

// DocumentIDs returns the document scope; nil means all documents.
func (r *Request) DocumentIDs() []string { return r.documentIDs }

// MinScore returns the similarity floor; 0 disables it.
func (r *Request) MinScore() float64 { return r.minScore }

// Scoped reports whether the query is restricted to specific documents.
func (r *Request) Scoped() bool { return len(r.documentIDs) > 0 }
