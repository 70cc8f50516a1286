// Package openai talks to OpenAI-compatible embedding and chat endpoints
// (vLLM, LocalAI, text-embeddings-inference, api.openai.com).
package openai

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/llm/prompt"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
)

const defaultTemperature = 0.1

type Config struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	EmbedModel string
	Timeout    time.Duration
}

type Client struct {
	api        *openai.Client
	chatModel  string
	embedModel openai.EmbeddingModel
	executor   *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		apiCfg.BaseURL = base
	}
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:        openai.NewClientWithConfig(apiCfg),
		chatModel:  cfg.ChatModel,
		embedModel: openai.EmbeddingModel(cfg.EmbedModel),
		executor:   executor,
	}
}

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

	var response openai.EmbeddingResponse
	err := e.client.executor.Execute(ctx, "openai.embed", func(callCtx context.Context) error {
		resp, err := e.client.api.CreateEmbeddings(callCtx, openai.EmbeddingRequestStrings{
			Input: input,
			Model: e.client.embedModel,
		})
		if err != nil {
			return err
		}
		response = resp
		return nil
	}, classifyOpenAIError)
	if err != nil {
		return nil, markTemporary("openai embed", fmt.Errorf("create embeddings: %w", err))
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("embed returned %d vectors for %d inputs", len(response.Data), len(texts))
	}

	// Servers are allowed to answer out of order; Index is authoritative.
	data := response.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vectors := make([][]float32, len(data))
	for i, item := range data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

type Generator struct {
	client  *Client
	prompts *prompt.Builder
}

func NewGenerator(client *Client, prompts *prompt.Builder) *Generator {
	return &Generator{client: client, prompts: prompts}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, docs []domain.Document, history string) (string, error) {
	request := openai.ChatCompletionRequest{
		Model:       g.client.chatModel,
		Temperature: defaultTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.prompts.System()},
			{Role: openai.ChatMessageRoleUser, Content: g.prompts.User(question, docs, history)},
		},
	}

	var answer string
	err := g.client.executor.Execute(ctx, "openai.chat", func(callCtx context.Context) error {
		resp, err := g.client.api.CreateChatCompletion(callCtx, request)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("chat completion returned no choices")
		}
		answer = resp.Choices[0].Message.Content
		return nil
	}, classifyOpenAIError)
	if err != nil {
		return "", markTemporary("openai chat", fmt.Errorf("create chat completion: %w", err))
	}
	return strings.TrimSpace(answer), nil
}
