package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type embeddingItem struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// embeddingResponse mirrors the OpenAI-compatible API embedding response.
type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingItem `json:"data"`
	Model  string          `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

func newTestEmbedder(url string) *Embedder {
	return NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    url,
		Model:      "test-model",
		Dimensions: 2,
		Provider:   "test",
		Logger:     zap.NewNop(),
	})
}

func TestEmbedder_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" || req.Dimensions != 2 {
			t.Errorf("unexpected request: %+v", req)
		}

		resp := embeddingResponse{Object: "list", Model: "test-model"}
		// Reverse order on purpose: the adapter must sort by index.
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, embeddingItem{
				Object:    "embedding",
				Embedding: []float32{float32(i), float32(len(req.Input[i]))},
				Index:     i,
			})
		}
		resp.Usage.PromptTokens = 7
		resp.Usage.TotalTokens = 7

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	res, err := newTestEmbedder(server.URL).EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(res.Vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(res.Vectors))
	}
	for i, v := range res.Vectors {
		if v[0] != float32(i) {
			t.Errorf("vector %d out of order: %v", i, v)
		}
	}
	if res.TotalTokens != 7 || res.PromptTokens != 7 {
		t.Errorf("unexpected usage: %+v", res)
	}
}

func TestEmbedder_EmbedBatch_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty input")
	}))
	defer server.Close()

	res, err := newTestEmbedder(server.URL).EmbedBatch(context.Background(), nil)
	if err != nil || len(res.Vectors) != 0 {
		t.Fatalf("expected empty result, got %+v, %v", res, err)
	}
}

func TestEmbedder_EmbedBatch_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := embeddingResponse{Object: "list"}
		resp.Data = []embeddingItem{{Object: "embedding", Embedding: []float32{1, 2}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	_, err := newTestEmbedder(server.URL).EmbedBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrPermanentProvider) {
		t.Fatalf("expected ErrPermanentProvider, got %v", err)
	}
}

func TestEmbedder_ErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		transient   bool
		rateLimited bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, true, true},
		{"timeout", http.StatusRequestTimeout, `{"detail":"timeout"}`, true, false},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, true, false},
		{"bad gateway plain body", http.StatusBadGateway, `upstream down`, true, false},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, false, false},
		{"bad request", http.StatusBadRequest, `{"detail":"input too long"}`, false, false},
		{"not found", http.StatusNotFound, `{"detail":"no such model"}`, false, false},
		{"unprocessable", http.StatusUnprocessableEntity, `{"detail":"malformed"}`, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := newTestEmbedder(server.URL).EmbedBatch(context.Background(), []string{"x"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, domain.ErrTransientProvider); got != tc.transient {
				t.Errorf("transient = %v, want %v (%v)", got, tc.transient, err)
			}
			if got := errors.Is(err, domain.ErrPermanentProvider); got == tc.transient {
				t.Errorf("permanent = %v, want %v (%v)", got, !tc.transient, err)
			}
			if got := errors.Is(err, domain.ErrRateLimited); got != tc.rateLimited {
				t.Errorf("rate limited = %v, want %v", got, tc.rateLimited)
			}
		})
	}
}

func TestEmbedder_NetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestEmbedder(url).EmbedBatch(context.Background(), []string{"x"})
	if !errors.Is(err, domain.ErrTransientProvider) {
		t.Fatalf("expected ErrTransientProvider, got %v", err)
	}
}

func TestEmbedder_CanceledIsNotTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestEmbedder(server.URL).EmbedBatch(ctx, []string{"x"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, domain.ErrTransientProvider) {
		t.Error("cancellation must not be retried")
	}
}

func TestEmbedder_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer server.Close()

	if err := newTestEmbedder(server.URL).HealthCheck(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExtractDetail(t *testing.T) {
	if got := extractDetail([]byte(`{"detail":"oops"}`)); got != "oops" {
		t.Errorf("got %q", got)
	}
	if got := extractDetail([]byte(`not json`)); got != "" {
		t.Errorf("got %q", got)
	}
}
