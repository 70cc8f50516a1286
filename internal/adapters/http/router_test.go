package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/routers"
	"github.com/google/go-cmp/cmp"

	"github.com/kirillkom/campus-assistant/internal/config"
	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/observability/metrics"
)

type answererFake struct {
	ready    bool
	err      error
	result   domain.RouteResult
	question string
	history  []domain.ConversationTurn
	calls    int
}

func (f *answererFake) Run(_ context.Context, query string, history []domain.ConversationTurn) (domain.RouteResult, error) {
	f.calls++
	f.question = query
	f.history = history
	if f.err != nil {
		return domain.RouteResult{}, f.err
	}
	if f.result.Branch == "" {
		return domain.RouteResult{
			Answer:       "ok",
			RelevantDocs: []string{"Semester dates"},
			RerankedDocs: []domain.Document{{Title: "Semester dates", Text: "October 1st", URL: "https://tha.de/dates"}},
			Scores:       []float64{7.5},
			Label:        "Similarity score: 7.5",
			Branch:       domain.BranchPrimary,
		}, nil
	}
	return f.result, nil
}

func (f *answererFake) Ready() bool { return f.ready }

func newTestHandler(t *testing.T, cfg config.Config, answerer *answererFake) http.Handler {
	t.Helper()
	router, err := NewRouter(cfg, answerer, nil)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return router.Handler()
}

func postAsk(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestAskReturnsRouteResult(t *testing.T) {
	answerer := &answererFake{ready: true}
	handler := newTestHandler(t, config.Config{}, answerer)

	res := postAsk(t, handler, `{"question":"When does the semester start?","history":[{"origin":"human","text":"Hi"},{"origin":"ai","text":"Hello"}]}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected %s header", requestIDHeader)
	}

	var got domain.AskResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Branch != domain.BranchPrimary || got.Label != "Similarity score: 7.5" {
		t.Fatalf("unexpected response: %+v", got)
	}
	wantHistory := []domain.ConversationTurn{
		{Origin: domain.OriginHuman, Text: "Hi"},
		{Origin: domain.OriginAI, Text: "Hello"},
	}
	if diff := cmp.Diff(wantHistory, answerer.history); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestAskRejectsContractViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing question", body: `{"history":[]}`},
		{name: "empty question", body: `{"question":""}`},
		{name: "unknown origin", body: `{"question":"q","history":[{"origin":"robot","text":"x"}]}`},
		{name: "invalid json", body: `{"question":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answerer := &answererFake{ready: true}
			handler := newTestHandler(t, config.Config{}, answerer)

			res := postAsk(t, handler, tt.body)
			if res.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", res.Code, res.Body.String())
			}
			if answerer.calls != 0 {
				t.Fatalf("expected no Run call, got %d", answerer.calls)
			}
		})
	}
}

func TestAskRejectsGet(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &answererFake{ready: true})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/ask", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestValidatorPassesUndescribedPaths(t *testing.T) {
	validator, err := newRequestValidator()
	if err != nil {
		t.Fatalf("newRequestValidator() error = %v", err)
	}
	called := false
	handler := validator.middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/unknown", nil))
	if !called || res.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through, got %d (called=%v)", res.Code, called)
	}
}

func TestIsRouteErrorMatchesReason(t *testing.T) {
	err := &routers.RouteError{Reason: routers.ErrMethodNotAllowed.Error()}
	if !isRouteError(fmt.Errorf("find route: %w", err), routers.ErrMethodNotAllowed) {
		t.Fatalf("expected wrapped method-not-allowed to match")
	}
	if isRouteError(err, routers.ErrPathNotFound) {
		t.Fatalf("method-not-allowed must not match path-not-found")
	}
	if isRouteError(routers.ErrPathNotFound, routers.ErrPathNotFound) {
		t.Fatalf("bare sentinel is not a router lookup failure")
	}
}

func TestAskMapsDomainErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "run", errors.New("blank")), http.StatusBadRequest, "invalid_input"},
		{"not ready", domain.WrapError(domain.ErrNotReady, "run", errors.New("setup pending")), http.StatusServiceUnavailable, "not_ready"},
		{"temporary", domain.WrapError(domain.ErrTemporary, "rerank", errors.New("timeout")), http.StatusServiceUnavailable, "temporary"},
		{"generation", domain.WrapError(domain.ErrGeneration, "generate", errors.New("model crashed")), http.StatusBadGateway, "generation_failed"},
		{"generation timeout", domain.WrapError(domain.ErrGeneration, "generate", domain.WrapError(domain.ErrTemporary, "ollama", errors.New("deadline"))), http.StatusServiceUnavailable, "temporary"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(t, config.Config{}, &answererFake{ready: true, err: tt.err})

			res := postAsk(t, handler, `{"question":"test"}`)
			if res.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, res.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body["code"] != tt.wantKind {
				t.Fatalf("expected code %q, got %q", tt.wantKind, body["code"])
			}
		})
	}
}

func TestReadyzReflectsAnswerer(t *testing.T) {
	answerer := &answererFake{}
	handler := newTestHandler(t, config.Config{}, answerer)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before setup, got %d", res.Code)
	}

	answerer.ready = true
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 after setup, got %d", res.Code)
	}
}

func TestMetricsAndContractEndpoints(t *testing.T) {
	router, err := NewRouter(config.Config{}, &answererFake{ready: true}, metrics.NewHTTPServerMetrics(serviceName))
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	handler := router.Handler()

	postAsk(t, handler, `{"question":"test"}`)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "campus_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "/v1/ask") {
		t.Fatalf("expected contract document, got %d", res.Code)
	}
}
