package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
)

// Registry keeps document records in a map.
type Registry struct {
	mu   sync.RWMutex
	docs map[string]document.Document
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{docs: make(map[string]document.Document)}
}

// Save stores a copy of the document.
func (r *Registry) Save(_ context.Context, doc *document.Document) error {
	r.mu.Lock()
	r.docs[doc.ID()] = *doc
	r.mu.Unlock()
	return nil
}

// Get returns a document by ID.
func (r *Registry) Get(_ context.Context, id string) (document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return document.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

// Delete removes a document. Missing IDs are not an error.
func (r *Registry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	delete(r.docs, id)
	r.mu.Unlock()
	return nil
}

// List returns every document sorted by ID.
func (r *Registry) List(_ context.Context) ([]document.Document, error) {
	r.mu.RLock()
	out := make([]document.Document, 0, len(r.docs))
	for _, d := range r.docs {
		out = append(out, d)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}
