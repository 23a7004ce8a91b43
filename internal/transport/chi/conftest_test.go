package chi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/chunker"
	"github.com/kailas-cloud/docrag/internal/repository/memory"
	"github.com/kailas-cloud/docrag/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/docrag/internal/usecase/health"
	"github.com/kailas-cloud/docrag/internal/usecase/ingest"
	"github.com/kailas-cloud/docrag/internal/usecase/retrieve"
)

const testDims = 3

// keywordEmbedder maps text onto (alpha, beta, bias) counts so similarity follows vocabulary.
type keywordEmbedder struct {
	batchFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "alpha")),
		float32(strings.Count(lower, "beta")),
		0.1,
	}
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.batchFn != nil {
		return e.batchFn(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = keywordVector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return keywordVector(text), nil
}

type mockGenerator struct {
	generateFn func(ctx context.Context, system, user string) (string, error)
}

func (m *mockGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	return m.generateFn(ctx, system, user)
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	embedder *keywordEmbedder
	chunks   *memory.ChunkStore
	probe    func(ctx context.Context) error
}

type envOption func(*envConfig)

type envConfig struct {
	apiKeys   []string
	maxUpload int64
	generator answer.Generator
}

func withAPIKeys(keys ...string) envOption {
	return func(c *envConfig) { c.apiKeys = keys }
}

func withMaxUpload(n int64) envOption {
	return func(c *envConfig) { c.maxUpload = n }
}

func withGenerator(g answer.Generator) envOption {
	return func(c *envConfig) { c.generator = g }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := envConfig{maxUpload: 1 << 20}
	for _, o := range opts {
		o(&cfg)
	}

	ch, err := chunker.New(40, 10)
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	logger := zap.NewNop()
	emb := &keywordEmbedder{}
	chunks := memory.NewChunkStore(testDims)
	registry := memory.NewRegistry()

	docs := ingest.New(ch, emb, chunks, registry, ingest.Config{StoreMaxAttempts: 1}, logger)
	ret := retrieve.New(emb, chunks, registry, retrieve.Config{DefaultK: 5, MaxK: 10, Overfetch: 2}, logger)

	env := &testEnv{embedder: emb, chunks: chunks}
	env.probe = func(context.Context) error { return nil }
	health := healthuc.New(0, healthuc.Component{
		Name:     "storage",
		Critical: true,
		Probe:    func(ctx context.Context) error { return env.probe(ctx) },
	})

	var ans Answerer
	if cfg.generator != nil {
		ans = answer.New(ret, cfg.generator, logger)
	}

	env.server = NewServer(docs, ret, ans, health, logger, cfg.maxUpload)
	env.handler = env.server.Router(cfg.apiKeys)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	case []byte:
		r = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response (status %d): %v", rr.Code, err)
	}
	return v
}

func (e *testEnv) mustPut(t *testing.T, id, text string) Document {
	t.Helper()
	rr := e.do(t, http.MethodPut, "/documents/"+id, PutDocumentRequest{Name: id + ".txt", Text: text})
	if rr.Code != http.StatusOK {
		t.Fatalf("put %s: status %d body %s", id, rr.Code, rr.Body.String())
	}
	return decode[Document](t, rr)
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
