package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
)

const maxPageBytes = 8 << 20

type FetcherConfig struct {
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	UserAgent         string
}

// Fetcher downloads pages under a shared rate limit. Only 200 responses count as success.
type Fetcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
	userAgent  string
}

func NewFetcher(cfg FetcherConfig, executor *resilience.Executor) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		executor:   executor,
		userAgent:  cfg.UserAgent,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	var body string
	err := f.executor.Execute(ctx, "web.fetch", func(callCtx context.Context) error {
		if err := f.limiter.Wait(callCtx); err != nil {
			return err
		}
		text, err := f.get(callCtx, pageURL)
		if err != nil {
			return err
		}
		body = text
		return nil
	}, resilience.ClassifyUpstream)
	if err != nil {
		return "", resilience.MarkTemporary("fetch page", err, resilience.ClassifyUpstream)
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "create fetch request", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Error pages are HTML; the status line is enough.
		return "", &resilience.StatusError{Upstream: "fetch", Target: pageURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", pageURL, err)
	}
	return string(raw), nil
}
