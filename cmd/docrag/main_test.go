package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/config"
	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/version"
)

func TestVersionCmd(t *testing.T) {
	original := version.Version
	version.Version = "test-1.0.0"
	defer func() { version.Version = original }()

	buf := new(bytes.Buffer)
	root := newRootCmd()
	root.SetOut(buf)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(buf.String(), "docrag test-1.0.0") {
		t.Errorf("output: got %q", buf.String())
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "mcp", "version"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %s: got %v, %v", name, cmd, err)
		}
	}
}

// fakeProvider serves OpenAI-compatible embeddings and chat completions.
func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/embeddings":
			var req struct {
				Input []string `json:"input"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode embeddings request: %v", err)
			}
			data := make([]map[string]any, len(req.Input))
			for i, text := range req.Input {
				data[i] = map[string]any{
					"object":    "embedding",
					"index":     i,
					"embedding": []float32{float32(strings.Count(text, "alpha")), float32(strings.Count(text, "beta")), 0.1},
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"data":   data,
				"model":  "test-model",
				"usage":  map[string]int{"prompt_tokens": len(req.Input), "total_tokens": len(req.Input)},
			})
		case "/chat/completions":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "chat-1",
				"object": "chat.completion",
				"model":  "test-chat",
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": " alpha answer "},
					"finish_reason": "stop",
				}},
			})
		default:
			t.Errorf("unexpected provider path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func memoryConfig(t *testing.T, providerURL string) config.Config {
	t.Helper()
	yaml := `
http:
  port: 8080
database:
  driver: memory
embedding:
  api_key: test-key
  base_url: ` + providerURL + `
  model: test-model
  dimensions: 3
  batch_size: 2
  max_attempts: 1
chunking:
  size: 20
  overlap: 5
generation:
  model: test-chat
`
	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func TestNewApp_MemoryEndToEnd(t *testing.T) {
	provider := fakeProvider(t)
	a, err := newApp(context.Background(), memoryConfig(t, provider.URL), zap.NewNop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()
	handler := newHTTPServer(a).Handler

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rr
	}

	rr := do(http.MethodPut, "/documents/guide", `{"name":"Guide","text":"alpha comes first. beta follows alpha. gamma is last."}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("ingest: status %d %s", rr.Code, rr.Body.String())
	}

	rr = do(http.MethodPost, "/query", `{"query":"alpha","k":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("query: status %d %s", rr.Code, rr.Body.String())
	}
	var query struct {
		Items []struct {
			DocumentName string `json:"document_name"`
			Rank         int    `json:"rank"`
		} `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&query); err != nil {
		t.Fatal(err)
	}
	if len(query.Items) != 2 || query.Items[0].DocumentName != "Guide" || query.Items[1].Rank != 2 {
		t.Errorf("query items: %+v", query.Items)
	}

	rr = do(http.MethodPost, "/answer", `{"query":"what comes first?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("answer: status %d %s", rr.Code, rr.Body.String())
	}
	var ans struct {
		Answer  string   `json:"answer"`
		Sources []string `json:"sources"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&ans); err != nil {
		t.Fatal(err)
	}
	if ans.Answer != "alpha answer" || len(ans.Sources) != 1 || ans.Sources[0] != "Guide" {
		t.Errorf("answer: %+v", ans)
	}

	if _, err := newMCPServer(a); err != nil {
		t.Errorf("newMCPServer: %v", err)
	}
}

func TestNewApp_WithoutGenerationDisablesAnswer(t *testing.T) {
	provider := fakeProvider(t)
	cfg := memoryConfig(t, provider.URL)
	cfg.Generation.Model = ""

	a, err := newApp(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	rr := httptest.NewRecorder()
	newHTTPServer(a).Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/answer", strings.NewReader(`{"query":"x"}`)))
	if rr.Code != http.StatusNotImplemented {
		t.Errorf("answer without generator: status %d, want 501", rr.Code)
	}
}

func TestNewApp_UnknownDriver(t *testing.T) {
	cfg := memoryConfig(t, "http://127.0.0.1:0")
	cfg.Database.Driver = "sqlite"

	_, err := newApp(context.Background(), cfg, zap.NewNop())
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("err: got %v, want ErrInvalidConfig", err)
	}
}
