package mcpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

const AskToolName = "ask_institution"

// Handlers backs the MCP tools with the same answerer the HTTP and NATS surfaces use.
type Handlers struct {
	answerer ports.QuestionAnswerer
}

func NewHandlers(answerer ports.QuestionAnswerer) *Handlers {
	return &Handlers{answerer: answerer}
}

// NewServer builds an MCP server exposing the ask tool for one institution.
func NewServer(answerer ports.QuestionAnswerer, institution domain.Institution, version string) *server.MCPServer {
	s := server.NewMCPServer(
		institution.DisplayName()+" assistant",
		version,
		server.WithToolCapabilities(false),
	)
	handlers := NewHandlers(answerer)
	s.AddTool(AskTool(institution), handlers.AskInstitution)
	return s
}

func AskTool(institution domain.Institution) mcp.Tool {
	return mcp.NewTool(AskToolName,
		mcp.WithDescription(fmt.Sprintf(
			"Answer a question about %s from its indexed web pages, documents and FAQ. "+
				"Questions outside the institution's scope get a refusal with a link to the website.",
			institution.DisplayName(),
		)),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer, in German or English"),
		),
	)
}

func (h *Handlers) AskInstitution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question argument is required and must be a non-empty string"), nil
	}

	result, err := h.answerer.Run(ctx, question, nil)
	if err != nil {
		slog.Warn("mcp_ask_failed", "code", domain.ErrorCode(err), "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", domain.ErrorCode(err), err)), nil
	}

	return mcp.NewToolResultStructured(domain.NewAskResponse(result), renderAnswer(result)), nil
}

// renderAnswer is the plain text form: the answer followed by its sources.
func renderAnswer(result domain.RouteResult) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(result.Answer))
	b.WriteString("\n\n")
	b.WriteString(result.Label)

	sources := make([]string, 0, len(result.RerankedDocs))
	seen := make(map[string]struct{}, len(result.RerankedDocs))
	for _, doc := range result.RerankedDocs {
		if doc.URL == "" {
			continue
		}
		if _, ok := seen[doc.URL]; ok {
			continue
		}
		seen[doc.URL] = struct{}{}
		sources = append(sources, fmt.Sprintf("- %s (%s)", doc.Title, doc.URL))
	}
	if len(sources) > 0 {
		b.WriteString("\nSources:\n")
		b.WriteString(strings.Join(sources, "\n"))
	}
	return b.String()
}
