package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/llm/prompt"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
)

const defaultTemperature = 0.1

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// Embedder embeds passages and queries with the instruction prefixes the
// e5 embedding models were trained with.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, passages []string) ([][]float32, error) {
	return e.embed(ctx, domain.PassageInstruction, passages)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, domain.QueryInstruction, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (e *Embedder) embed(ctx context.Context, instruction string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	input := make([]string, len(texts))
	for i, text := range texts {
		input[i] = instruction + text
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": input,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed returned %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

type Generator struct {
	client  *Client
	prompts *prompt.Builder
}

func NewGenerator(client *Client, prompts *prompt.Builder) *Generator {
	return &Generator{client: client, prompts: prompts}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, docs []domain.Document, history string) (string, error) {
	return g.client.generateText(ctx, g.prompts.Answer(question, docs, history))
}

func (c *Client) generateText(ctx context.Context, promptText string) (string, error) {
	reqBody := map[string]any{
		"model":   c.genModel,
		"prompt":  promptText,
		"stream":  false,
		"options": map[string]any{"temperature": defaultTemperature},
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
