package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/llm/prompt"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})
}

func TestEmbedderPrefixesAndOrdersByIndex(t *testing.T) {
	var inputs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var payload struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.Model != "e5" {
			t.Errorf("model = %q, want e5", payload.Model)
		}
		inputs = append(inputs, payload.Input...)

		data := make([]map[string]any, 0, len(payload.Input))
		for i := len(payload.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": []float32{float32(i), 1}})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	}))
	defer server.Close()

	embedder := NewEmbedder(New(Config{BaseURL: server.URL + "/v1", EmbedModel: "e5"}, testExecutor()))
	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if diff := cmp.Diff([][]float32{{0, 1}, {1, 1}}, vectors); diff != "" {
		t.Fatalf("vectors mismatch (-want +got):\n%s", diff)
	}
	if _, err := embedder.EmbedQuery(context.Background(), "fees"); err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}

	want := []string{"passage: first", "passage: second", "query: fees"}
	if diff := cmp.Diff(want, inputs); diff != "" {
		t.Fatalf("inputs mismatch (-want +got):\n%s", diff)
	}
}

func TestGeneratorSendsSystemAndUserMessages(t *testing.T) {
	var messages []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []map[string]any `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		messages = payload.Messages
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":" The fee is 80 EUR. "}}]}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(Config{BaseURL: server.URL, ChatModel: "chat"}, testExecutor()), prompt.NewBuilder(domain.DefaultInstitution()))
	answer, err := gen.GenerateAnswer(context.Background(), "What is the fee?", []domain.Document{{Title: "Fees", Text: "Fees\nThe fee is 80 EUR."}}, "USER: hi ASSISTANT: hello\n")
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if answer != "The fee is 80 EUR." {
		t.Fatalf("answer = %q", answer)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0]["role"] != "system" || messages[1]["role"] != "user" {
		t.Fatalf("unexpected roles: %v", messages)
	}
	user, _ := messages[1]["content"].(string)
	for _, fragment := range []string{"CONTEXT: Fees\nThe fee is 80 EUR.", "USER: hi ASSISTANT: hello", "USER: What is the fee? ASSISTANT:"} {
		if !strings.Contains(user, fragment) {
			t.Fatalf("user message %q does not contain %q", user, fragment)
		}
	}
}

func TestGeneratorServiceUnavailableIsTemporary(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(Config{BaseURL: server.URL, ChatModel: "chat"}, testExecutor()), prompt.NewBuilder(domain.DefaultInstitution()))
	_, err := gen.GenerateAnswer(context.Background(), "q", nil, "")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestGeneratorBadRequestIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"unknown model","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(Config{BaseURL: server.URL, ChatModel: "missing"}, testExecutor()), prompt.NewBuilder(domain.DefaultInstitution()))
	_, err := gen.GenerateAnswer(context.Background(), "q", nil, "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("bad request must not be temporary: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}
