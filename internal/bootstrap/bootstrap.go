package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/campus-assistant/internal/config"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
	"github.com/kirillkom/campus-assistant/internal/core/usecase"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/extractor/qa"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/extractor/web"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/llm/prompt"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/rerank/crossencoder"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/tokenizer"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/vector/sqlitevec"
)

// Observer receives routing, ingestion and upstream resilience measurements.
// Each process passes its own metrics.
type Observer interface {
	ports.RouteObserver
	ports.IngestObserver
	resilience.Observer
}

type App struct {
	Config config.Config

	Manager *usecase.ConversationManager
	Storage *localfs.Storage
	// Queue is nil when NATS_URL is empty.
	Queue *nats.Queue
	// Reports is nil when POSTGRES_DSN is empty.
	Reports *postgres.ReportRepository

	closeFn func()
}

// New wires the application and loads (or builds) both indexes. A setup
// failure is returned so the process exits before serving.
func New(ctx context.Context, cfg config.Config, observer Observer) (*App, error) {
	app, err := Wire(ctx, cfg, observer)
	if err != nil {
		return nil, err
	}
	if err := app.Manager.Setup(ctx, cfg.PrimaryCorpus(), cfg.AlternativeCorpus()); err != nil {
		app.Close()
		return nil, fmt.Errorf("setup corpora: %w", err)
	}
	return app, nil
}

// Wire builds every collaborator without touching the indexes.
func Wire(ctx context.Context, cfg config.Config, observer Observer) (*App, error) {
	var (
		closers        []func()
		reports        ports.ReportStore
		events         ports.EventPublisher
		routeObserver  ports.RouteObserver
		ingestObserver ports.IngestObserver
	)
	if observer != nil {
		routeObserver = observer
		ingestObserver = observer
	}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var executorOpts []resilience.Option
	if observer != nil {
		executorOpts = append(executorOpts, resilience.WithObserver(observer))
	}
	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		CallTimeout:         cfg.CallTimeout,
		BreakerEnabled:      cfg.BreakerEnabled,
		BreakerFailureRatio: cfg.BreakerFailureRatio,
	}, executorOpts...)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	var reportRepo *postgres.ReportRepository
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		closers = append(closers, func() { closeDB(db) })
		reportRepo = postgres.NewReportRepository(db)
		if err := reportRepo.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		reports = reportRepo
	} else {
		slog.Info("ingest_reports_disabled", "reason", "POSTGRES_DSN is empty")
	}

	var queue *nats.Queue
	if cfg.NATSURL != "" {
		queue, err = nats.NewWithOptions(cfg.NATSURL, nats.Options{
			AskSubject:         cfg.NATSAskSubject,
			CorpusSubject:      cfg.NATSCorpusSubject,
			AskTimeout:         cfg.NATSAskTimeout,
			ResilienceExecutor: executor,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		closers = append(closers, queue.Close)
		events = queue
	}

	embedder, generator := newLanguageModels(cfg, executor)

	var indexStore ports.IndexStore
	switch cfg.VectorBackend {
	case config.VectorBackendQdrant:
		indexStore = qdrant.New(cfg.QdrantURL, cfg.QdrantCollectionPrefix, executor)
	default:
		indexStore = sqlitevec.New()
	}

	pipeline := usecase.NewIngestionPipeline(
		localfs.NewCatalog(storage),
		web.NewFetcher(web.FetcherConfig{
			RequestsPerSecond: cfg.FetchRPS,
			Burst:             1,
			Timeout:           cfg.FetchTimeout,
			UserAgent:         cfg.FetchUserAgent,
		}, executor),
		web.NewExtractor(web.Policy{
			TableAllowTitles: cfg.Policy.Web.TableAllowTitles,
			PhoneMarkers:     cfg.Policy.Web.PhoneMarkers,
			NoiseStrings:     cfg.Policy.Web.NoiseStrings,
		}),
		pdf.NewExtractor(),
		qa.NewReader(),
		storage,
		chunking.NewParagraphChunker(tokenizer.NewHeuristic(cfg.TokenPieceLen), cfg.ChunkMaxTokens),
		ingestObserver,
		cfg.FetchConcurrency,
	)

	manager := usecase.NewConversationManager(
		pipeline,
		usecase.NewVectorIndex(embedder, indexStore, cfg.EmbedBatchSize),
		usecase.NewReranker(crossencoder.New(cfg.RerankURL, executor), cfg.Policy.Thresholds.RerankCap),
		generator,
		storage,
		reports,
		events,
		routeObserver,
		usecase.RouterSettings{
			Thresholds:  cfg.Policy.Thresholds,
			Institution: cfg.Policy.Institution,
			CallTimeout: cfg.StepTimeout,
		},
	)
	closers = append(closers, func() {
		if err := manager.Close(); err != nil {
			slog.Warn("index_close_failed", "error", err)
		}
	})

	return &App{
		Config:  cfg,
		Manager: manager,
		Storage: storage,
		Queue:   queue,
		Reports: reportRepo,
		closeFn: closeAll,
	}, nil
}

func newLanguageModels(cfg config.Config, executor *resilience.Executor) (ports.Embedder, ports.AnswerGenerator) {
	prompts := prompt.NewBuilder(cfg.Policy.Institution)
	if cfg.LLMProvider == config.LLMProviderOpenAI {
		client := openai.New(openai.Config{
			BaseURL:    cfg.OpenAIBaseURL,
			APIKey:     cfg.OpenAIAPIKey,
			ChatModel:  cfg.OpenAIChatModel,
			EmbedModel: cfg.OpenAIEmbedModel,
			Timeout:    cfg.StepTimeout,
		}, executor)
		return openai.NewEmbedder(client), openai.NewGenerator(client, prompts)
	}
	client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	return ollama.NewEmbedder(client), ollama.NewGenerator(client, prompts)
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("postgres_close_failed", "error", err)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
