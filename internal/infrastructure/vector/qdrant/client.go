package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
)

const upsertBatchSize = 256

// Store keeps each index in its own collection and publishes it under an
// alias derived from the index path once all points are written. The alias
// existing therefore means a complete build.
type Store struct {
	baseURL    string
	prefix     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, prefix string, executor *resilience.Executor) *Store {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Store{
		baseURL:    strings.TrimRight(baseURL, "/"),
		prefix:     prefix,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

// AliasFor maps an index path to the alias the index is published under.
func (s *Store) AliasFor(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
	if s.prefix == "" {
		return name
	}
	return s.prefix + "_" + name
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	alias := s.AliasFor(path)
	var resp struct {
		Result struct {
			Aliases []struct {
				AliasName string `json:"alias_name"`
			} `json:"aliases"`
		} `json:"result"`
	}
	if err := s.call(ctx, "qdrant.aliases", http.MethodGet, "/aliases", nil, &resp); err != nil {
		return false, err
	}
	for _, a := range resp.Result.Aliases {
		if a.AliasName == alias {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Write(ctx context.Context, path string, docs []domain.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "write index",
			fmt.Errorf("documents/vectors mismatch: %d/%d", len(docs), len(vectors)))
	}
	if len(vectors) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "write index", errors.New("no documents to index"))
	}

	alias := s.AliasFor(path)
	collection := alias + "_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	if err := s.createCollection(ctx, collection, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}
	for start := 0; start < len(docs); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(docs))
		points := make([]point, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, point{
				ID:     uuid.NewString(),
				Vector: vectors[i],
				Payload: map[string]any{
					"title":    docs[i].Title,
					"text":     docs[i].Text,
					"url":      docs[i].URL,
					"position": i,
				},
			})
		}
		reqPath := fmt.Sprintf("/collections/%s/points?wait=true", collection)
		if err := s.call(ctx, "qdrant.upsert", http.MethodPut, reqPath, map[string]any{"points": points}, nil); err != nil {
			return err
		}
	}

	aliasReq := map[string]any{
		"actions": []map[string]any{
			{"create_alias": map[string]any{"collection_name": collection, "alias_name": alias}},
		},
	}
	return s.call(ctx, "qdrant.alias", http.MethodPost, "/collections/aliases", aliasReq, nil)
}

func (s *Store) Open(ctx context.Context, path string) (ports.Index, error) {
	exists, err := s.Exists(ctx, path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.WrapError(domain.ErrIndexNotBuilt, "open index", fmt.Errorf("no alias %s", s.AliasFor(path)))
	}
	return &Index{store: s, alias: s.AliasFor(path)}, nil
}

func (s *Store) createCollection(ctx context.Context, collection string, vectorSize int) error {
	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	err := s.call(ctx, "qdrant.create_collection", http.MethodPut, "/collections/"+collection, reqBody, nil)
	if code, ok := resilience.StatusCodeOf(err); ok && code == http.StatusConflict {
		return nil
	}
	return err
}

func (s *Store) call(ctx context.Context, operation, method, path string, payload any, out any) error {
	err := s.executor.Execute(ctx, operation, func(callCtx context.Context) error {
		return s.do(callCtx, method, path, payload, out)
	}, resilience.ClassifyUpstream)
	if err != nil {
		if marked := resilience.MarkTemporary(operation, err, resilience.ClassifyUpstream); marked != err {
			return marked
		}
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}

func (s *Store) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.ReadStatusError("qdrant", path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
