package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

const defaultCallTimeout = 60 * time.Second

type RouterSettings struct {
	Thresholds  domain.ThresholdConfig
	Institution domain.Institution
	// CallTimeout bounds each retrieval, rerank and generation step.
	CallTimeout time.Duration
}

// ResponseRouter decides between the primary corpus, the alternative corpus
// and an out-of-scope answer. The alternative corpus is only searched once
// the primary search scored below its threshold.
type ResponseRouter struct {
	retriever ports.DocumentRetriever
	reranker  *Reranker
	generator ports.AnswerGenerator
	observer  ports.RouteObserver
	settings  RouterSettings
}

func NewResponseRouter(
	retriever ports.DocumentRetriever,
	reranker *Reranker,
	generator ports.AnswerGenerator,
	observer ports.RouteObserver,
	settings RouterSettings,
) *ResponseRouter {
	settings.Thresholds = settings.Thresholds.Normalize()
	if settings.CallTimeout <= 0 {
		settings.CallTimeout = defaultCallTimeout
	}
	if settings.Institution.Name == "" {
		settings.Institution = domain.DefaultInstitution()
	}
	return &ResponseRouter{
		retriever: retriever,
		reranker:  reranker,
		generator: generator,
		observer:  observer,
		settings:  settings,
	}
}

type searchResult struct {
	retrieved []domain.Document
	docs      []domain.Document
	scores    []float64
}

func (s searchResult) top() float64 {
	if len(s.scores) == 0 {
		return math.Inf(-1)
	}
	return s.scores[0]
}

func (r *ResponseRouter) Route(ctx context.Context, query string, history []domain.ConversationTurn) (domain.RouteResult, error) {
	started := time.Now()

	primary, err := r.search(ctx, query, false)
	if err != nil {
		return domain.RouteResult{}, err
	}
	if s0 := primary.top(); s0 >= r.settings.Thresholds.PrimaryThreshold {
		return r.answer(ctx, query, history, primary, domain.BranchPrimary, started)
	}

	alternative, err := r.search(ctx, query, true)
	if err != nil {
		return domain.RouteResult{}, err
	}
	if s1 := alternative.top(); s1 >= r.settings.Thresholds.AlternativeThreshold {
		return r.answer(ctx, query, history, alternative, domain.BranchAlternative, started)
	}
	return r.refuse(ctx, query, alternative, started)
}

func (r *ResponseRouter) search(ctx context.Context, query string, useAlternative bool) (searchResult, error) {
	corpus := "primary"
	if useAlternative {
		corpus = "alternative"
	}

	var result searchResult
	err := r.step(ctx, "retrieve "+corpus, func(stepCtx context.Context) error {
		docs, err := r.retriever.Retrieve(stepCtx, query, useAlternative)
		result.retrieved = docs
		return err
	})
	if err != nil {
		return searchResult{}, err
	}

	err = r.step(ctx, "rerank "+corpus, func(stepCtx context.Context) error {
		docs, scores, err := r.reranker.Rerank(stepCtx, query, result.retrieved)
		result.docs, result.scores = docs, scores
		return err
	})
	if err != nil {
		return searchResult{}, err
	}
	return result, nil
}

func (r *ResponseRouter) answer(
	ctx context.Context,
	query string,
	history []domain.ConversationTurn,
	found searchResult,
	branch domain.Branch,
	started time.Time,
) (domain.RouteResult, error) {
	contextDocs := found.docs
	if len(contextDocs) > r.settings.Thresholds.ContextCap {
		contextDocs = contextDocs[:r.settings.Thresholds.ContextCap]
	}

	text, err := r.generate(ctx, query, contextDocs, FormatHistory(recentTurns(history)))
	if err != nil {
		return domain.RouteResult{}, err
	}

	score := found.top()
	result := domain.RouteResult{
		Answer:       text,
		RelevantDocs: titles(found.retrieved),
		RerankedDocs: found.docs,
		Scores:       found.scores,
		Label:        "Similarity score: " + domain.FormatScore(score),
		Branch:       branch,
	}
	r.observe(branch, score, started)
	return result, nil
}

// refuse answers from an emptied placeholder document and no history so
// nothing retrieved or said earlier leaks into an admitted non-answer.
func (r *ResponseRouter) refuse(ctx context.Context, query string, alternative searchResult, started time.Time) (domain.RouteResult, error) {
	sentinel := r.settings.Institution.SentinelDocument()

	text, err := r.generate(ctx, query, []domain.Document{sentinel}, "")
	if err != nil {
		return domain.RouteResult{}, err
	}

	score := alternative.top()
	scores := []float64{}
	if len(alternative.scores) > 0 {
		scores = []float64{score}
	}
	result := domain.RouteResult{
		Answer:       text,
		RelevantDocs: []string{domain.NoneMarker},
		RerankedDocs: []domain.Document{sentinel},
		Scores:       scores,
		Label:        "Out of scope: " + domain.FormatScore(score),
		Branch:       domain.BranchRefusal,
	}
	r.observe(domain.BranchRefusal, score, started)
	return result, nil
}

func (r *ResponseRouter) generate(ctx context.Context, query string, docs []domain.Document, history string) (string, error) {
	var text string
	err := r.step(ctx, "generate answer", func(stepCtx context.Context) error {
		answer, err := r.generator.GenerateAnswer(stepCtx, query, docs, history)
		text = answer
		return err
	})
	if err != nil {
		return "", domain.WrapError(domain.ErrGeneration, "route", err)
	}
	return text, nil
}

// step runs one collaborator call under its own deadline. Running out of that
// deadline while the caller is still waiting is reported as a temporary failure.
func (r *ResponseRouter) step(ctx context.Context, operation string, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, r.settings.CallTimeout)
	defer cancel()

	err := fn(stepCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) && !domain.IsKind(err, domain.ErrTemporary) {
		return domain.WrapError(domain.ErrTemporary, operation, fmt.Errorf("no result within %s: %w", r.settings.CallTimeout, err))
	}
	return fmt.Errorf("%s: %w", operation, err)
}

func (r *ResponseRouter) observe(branch domain.Branch, score float64, started time.Time) {
	elapsed := time.Since(started)
	if r.observer != nil {
		r.observer.ObserveRoute(branch, score, elapsed)
	}
	slog.Info("route_decision",
		"branch", string(branch),
		"top_score", domain.FormatScore(score),
		"duration_ms", float64(elapsed.Microseconds())/1000.0,
	)
}

func titles(docs []domain.Document) []string {
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = doc.Title
	}
	return out
}
