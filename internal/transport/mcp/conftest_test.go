package mcp

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/retrieval"
	"github.com/kailas-cloud/docrag/internal/usecase/answer"
	"github.com/kailas-cloud/docrag/internal/usecase/ingest"
	"github.com/kailas-cloud/docrag/internal/usecase/retrieve"
)

type mockDocuments struct {
	ingestFn func(ctx context.Context, req ingest.Request) (document.Document, error)
	listFn   func(ctx context.Context) ([]document.Document, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockDocuments) Ingest(ctx context.Context, req ingest.Request) (document.Document, error) {
	return m.ingestFn(ctx, req)
}

func (m *mockDocuments) List(ctx context.Context) ([]document.Document, error) {
	return m.listFn(ctx)
}

func (m *mockDocuments) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

type mockRetriever struct {
	queryFn func(ctx context.Context, req retrieve.Request) ([]retrieval.Item, error)
}

func (m *mockRetriever) Query(ctx context.Context, req retrieve.Request) ([]retrieval.Item, error) {
	return m.queryFn(ctx, req)
}

type mockAnswerer struct {
	answerFn func(ctx context.Context, req retrieve.Request) (answer.Result, error)
}

func (m *mockAnswerer) Answer(ctx context.Context, req retrieve.Request) (answer.Result, error) {
	return m.answerFn(ctx, req)
}

// echoDocuments returns the registry view an ingest of req would produce.
func echoDocuments() *mockDocuments {
	return &mockDocuments{
		ingestFn: func(_ context.Context, req ingest.Request) (document.Document, error) {
			id := req.DocumentID
			if id == "" {
				id = "generated"
			}
			return testDocument(id, req.Name, req.Format, len(req.Text)), nil
		},
	}
}

func testDocument(id, name, format string, length int) document.Document {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return document.Reconstruct(id, name, format, length, document.StateReady, document.StateIndexing,
		1, "", now, now)
}

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	s, err := NewServer(ports, zap.NewNop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

// docxFile builds a minimal .docx archive with one w:p per paragraph.
func docxFile(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create docx part: %v", err)
	}
	if _, err := f.Write([]byte(body.String())); err != nil {
		t.Fatalf("write docx part: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close docx: %v", err)
	}
	return buf.Bytes()
}
