package crossencoder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})
}

func TestScoreMapsSortedResponseBackToInputOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Query != "tuition" || !req.RawScores || len(req.Texts) != 3 {
			t.Errorf("unexpected request: %+v", req)
		}
		_, _ = w.Write([]byte(`[{"index":2,"score":7.5},{"index":0,"score":1.25},{"index":1,"score":-3}]`))
	}))
	defer server.Close()

	scores, err := New(server.URL, testExecutor()).Score(context.Background(), "tuition", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if diff := cmp.Diff([]float64{1.25, -3, 7.5}, scores); diff != "" {
		t.Fatalf("scores mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreEmptyPassagesSkipsCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	scores, err := New(server.URL, testExecutor()).Score(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 0 || atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no call and no scores, got %v after %d calls", scores, calls)
	}
}

func TestScoreMissingIndexFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"index":0,"score":1}]`))
	}))
	defer server.Close()

	if _, err := New(server.URL, testExecutor()).Score(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Fatalf("expected error for incomplete response")
	}
}

func TestScoreOverloadedIsTemporary(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "model overloaded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := New(server.URL, testExecutor()).Score(context.Background(), "q", []string{"a"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}
