// Package document persists the document registry as one hash per document.
package document

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/docrag/internal/db"
	"github.com/kailas-cloud/docrag/internal/domain"
	domdoc "github.com/kailas-cloud/docrag/internal/domain/document"
)

// store is the consumer interface for the registry (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements the document registry of the ingest use case.
type Repo struct {
	store store
}

// New creates a document registry.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Save writes the full document record, replacing any previous one.
func (r *Repo) Save(ctx context.Context, doc *domdoc.Document) error {
	if err := r.store.HSet(ctx, docKey(doc.ID()), buildHashFields(doc)); err != nil {
		return storeErr("save document "+doc.ID(), err)
	}
	return nil
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, id string) (domdoc.Document, error) {
	m, err := r.store.HGetAll(ctx, docKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domdoc.Document{}, domain.ErrDocumentNotFound
		}
		return domdoc.Document{}, storeErr("get document "+id, err)
	}
	if len(m) == 0 {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	doc, err := parseHashFields(id, m)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("parse document %s: %w", id, err)
	}
	return doc, nil
}

// Delete removes a document record. Missing records are not an error.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, docKey(id)); err != nil {
		return storeErr("delete document "+id, err)
	}
	return nil
}

// List returns every registered document sorted by ID.
func (r *Repo) List(ctx context.Context) ([]domdoc.Document, error) {
	keys, err := r.store.Scan(ctx, keyPrefix()+"*")
	if err != nil {
		return nil, storeErr("scan documents", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, storeErr("load documents", err)
	}

	docs := make([]domdoc.Document, 0, len(keys))
	for i, m := range maps {
		// Deleted between SCAN and HGETALL.
		if len(m) == 0 {
			continue
		}
		id := keys[i][len(keyPrefix()):]
		doc, err := parseHashFields(id, m)
		if err != nil {
			return nil, fmt.Errorf("parse document %s: %w", id, err)
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID() < docs[j].ID() })
	return docs, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStore, err)
}

func keyPrefix() string { return domain.KeyPrefix + "doc:" }

func docKey(id string) string { return keyPrefix() + id }
