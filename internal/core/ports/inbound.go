package ports

import (
	"context"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

// QuestionAnswerer is the inbound contract shared by the HTTP, NATS and MCP surfaces.
type QuestionAnswerer interface {
	Run(ctx context.Context, query string, history []domain.ConversationTurn) (domain.RouteResult, error)
	Ready() bool
}

// CorpusBuilder runs ingestion and index build for one corpus without serving queries.
type CorpusBuilder interface {
	Build(ctx context.Context, spec domain.CorpusSpec) (domain.IngestionReport, error)
}
