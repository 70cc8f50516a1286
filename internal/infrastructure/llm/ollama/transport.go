package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
)

// postJSON sends one Ollama API call through the executor. A 404 naming the
// model means it was never pulled; that is reported as such and not retried.
func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	err = c.executor.Execute(ctx, "ollama."+operation, func(callCtx context.Context) error {
		return c.send(callCtx, path, body, out)
	}, resilience.ClassifyUpstream)
	if err == nil {
		return nil
	}
	if isModelMissing(err) {
		return fmt.Errorf("ollama %s: model is not pulled: %w", operation, err)
	}
	return resilience.MarkTemporary("ollama "+operation, err, resilience.ClassifyUpstream)
}

func (c *Client) send(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return resilience.ReadStatusError("ollama", path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func isModelMissing(err error) bool {
	code, ok := resilience.StatusCodeOf(err)
	return ok && code == http.StatusNotFound && strings.Contains(err.Error(), "not found")
}
