// Package crossencoder scores (query, passage) pairs with a cross-encoder
// served by text-embeddings-inference (POST /rerank).
package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate"`
}

type rerankItem struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score returns one raw logit per passage, in passage order.
func (c *Client) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(rerankRequest{Query: query, Texts: passages, RawScores: true, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	var items []rerankItem
	err = c.executor.Execute(ctx, "crossencoder.rerank", func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build rerank request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("rerank request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return resilience.ReadStatusError("crossencoder", "/rerank", resp)
		}
		items = nil
		if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
			return fmt.Errorf("decode rerank response: %w", err)
		}
		return nil
	}, resilience.ClassifyUpstream)
	if err != nil {
		return nil, resilience.MarkTemporary("crossencoder score", err, resilience.ClassifyUpstream)
	}

	scores := make([]float64, len(passages))
	seen := make([]bool, len(passages))
	for _, item := range items {
		if item.Index < 0 || item.Index >= len(passages) {
			return nil, fmt.Errorf("rerank returned index %d for %d passages", item.Index, len(passages))
		}
		scores[item.Index] = item.Score
		seen[item.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank returned no score for passage %d", i)
		}
	}
	return scores, nil
}
