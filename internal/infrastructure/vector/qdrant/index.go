package qdrant

import (
	"context"
	"net/http"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

// Index searches a published alias.
type Index struct {
	store *Store
	alias string
}

func (i *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.Document, error) {
	if k <= 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := i.store.call(ctx, "qdrant.search", http.MethodPost, "/collections/"+i.alias+"/points/search", reqBody, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Document, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, domain.Document{
			Title: getStringPayload(r.Payload, "title"),
			Text:  getStringPayload(r.Payload, "text"),
			URL:   getStringPayload(r.Payload, "url"),
		})
	}
	return out, nil
}

func (i *Index) Close() error {
	return nil
}
