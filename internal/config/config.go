package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

const (
	LLMProviderOllama = "ollama"
	LLMProviderOpenAI = "openai"

	VectorBackendSQLite = "sqlite"
	VectorBackendQdrant = "qdrant"
)

type Config struct {
	APIPort  string
	LogLevel string

	APIRateLimitRPS     float64
	APIRateLimitBurst   int
	APIMaxInFlight      int
	APIBackpressureWait time.Duration

	PostgresDSN string

	NATSURL           string
	NATSAskSubject    string
	NATSCorpusSubject string
	NATSAskTimeout    time.Duration

	LLMProvider string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	OpenAIBaseURL    string
	OpenAIAPIKey     string
	OpenAIChatModel  string
	OpenAIEmbedModel string

	RerankURL string

	VectorBackend          string
	QdrantURL              string
	QdrantCollectionPrefix string

	StoragePath string
	IndexDir    string

	PrimaryDataPath       string
	AlternativeWebList    string
	PDFDir                string
	IncludePDFs           bool
	PrimaryCorpusName     string
	AlternativeCorpusName string

	ChunkMaxTokens   int
	TokenPieceLen    int
	EmbedBatchSize   int
	FetchConcurrency int
	FetchRPS         float64
	FetchTimeout     time.Duration
	FetchUserAgent   string

	StepTimeout         time.Duration
	RetryMaxAttempts    int
	CallTimeout         time.Duration
	BreakerEnabled      bool
	BreakerFailureRatio float64

	PolicyFile string
	Policy     Policy

	WorkerMetricsPort string
}

// Policy is the institution specific part of the configuration, read from POLICY_FILE.
type Policy struct {
	Institution domain.Institution     `yaml:"institution"`
	Thresholds  domain.ThresholdConfig `yaml:"thresholds"`
	Web         WebPolicy              `yaml:"web"`
}

type WebPolicy struct {
	TableAllowTitles []string `yaml:"table_allow_titles"`
	PhoneMarkers     []string `yaml:"phone_markers"`
	NoiseStrings     []string `yaml:"noise_strings"`
}

func DefaultPolicy() Policy {
	return Policy{
		Institution: domain.DefaultInstitution(),
		Thresholds:  domain.DefaultThresholds(),
		Web: WebPolicy{
			TableAllowTitles: []string{"Directions", "Semestertermine "},
			PhoneMarkers:     []string{"+49"},
			NoiseStrings:     []string{"[Bitte aktivieren Sie Javascript]"},
		},
	}
}

// Load reads .env (when present), the environment and the optional policy file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		APIRateLimitRPS:     mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:   mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:      mustEnvInt("API_MAX_IN_FLIGHT", 32),
		APIBackpressureWait: time.Duration(mustEnvInt("API_BACKPRESSURE_WAIT_MS", 250)) * time.Millisecond,

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:           mustEnv("NATS_URL", ""),
		NATSAskSubject:    mustEnv("NATS_ASK_SUBJECT", "rag.ask"),
		NATSCorpusSubject: mustEnv("NATS_CORPUS_SUBJECT", "rag.corpus.built"),
		NATSAskTimeout:    time.Duration(mustEnvInt("NATS_ASK_TIMEOUT_SECONDS", 120)) * time.Second,

		LLMProvider: strings.ToLower(mustEnv("LLM_PROVIDER", LLMProviderOllama)),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "jeffh/intfloat-multilingual-e5-large:f16"),

		OpenAIBaseURL:    mustEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:     mustEnv("OPENAI_API_KEY", ""),
		OpenAIChatModel:  mustEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAIEmbedModel: mustEnv("OPENAI_EMBED_MODEL", "intfloat/multilingual-e5-large"),

		RerankURL: mustEnv("RERANK_URL", "http://localhost:8081"),

		VectorBackend:          strings.ToLower(mustEnv("VECTOR_BACKEND", VectorBackendSQLite)),
		QdrantURL:              mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollectionPrefix: mustEnv("QDRANT_COLLECTION_PREFIX", "campus"),

		StoragePath: mustEnv("STORAGE_PATH", "./data"),
		IndexDir:    mustEnv("INDEX_DIR", "./data/indexes"),

		PrimaryDataPath:       mustEnv("PRIMARY_DATA_PATH", "qa"),
		AlternativeWebList:    mustEnv("ALTERNATIVE_WEB_LIST", "websites.json"),
		PDFDir:                mustEnv("PDF_DIR", "pdf"),
		IncludePDFs:           mustEnvBool("INCLUDE_PDFS", false),
		PrimaryCorpusName:     mustEnv("PRIMARY_CORPUS_NAME", "primary"),
		AlternativeCorpusName: mustEnv("ALTERNATIVE_CORPUS_NAME", "alternative"),

		ChunkMaxTokens:   mustEnvInt("CHUNK_MAX_TOKENS", 500),
		TokenPieceLen:    mustEnvInt("TOKEN_PIECE_LEN", 8),
		EmbedBatchSize:   mustEnvInt("EMBED_BATCH_SIZE", 32),
		FetchConcurrency: mustEnvInt("FETCH_CONCURRENCY", 4),
		FetchRPS:         mustEnvFloat("FETCH_RPS", 2),
		FetchTimeout:     time.Duration(mustEnvInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		FetchUserAgent:   mustEnv("FETCH_USER_AGENT", "campus-assistant/1.0"),

		StepTimeout:         time.Duration(mustEnvInt("RAG_STEP_TIMEOUT_SECONDS", 60)) * time.Second,
		RetryMaxAttempts:    mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 3),
		CallTimeout:         time.Duration(mustEnvInt("RESILIENCE_CALL_TIMEOUT_SECONDS", 30)) * time.Second,
		BreakerEnabled:      mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
		BreakerFailureRatio: mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", 0.5),

		PolicyFile: mustEnv("POLICY_FILE", ""),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}

	policy, err := LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return Config{}, err
	}
	policy.Thresholds.PrimaryThreshold = mustEnvFloat("RAG_PRIMARY_THRESHOLD", policy.Thresholds.PrimaryThreshold)
	policy.Thresholds.AlternativeThreshold = mustEnvFloat("RAG_ALTERNATIVE_THRESHOLD", policy.Thresholds.AlternativeThreshold)
	policy.Thresholds.TopK = mustEnvInt("RAG_TOP_K", policy.Thresholds.TopK)
	cfg.Policy = policy

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadPolicy reads a YAML policy file over the defaults. An empty path yields the defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if strings.TrimSpace(path) == "" {
		return policy, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}
	policy.Thresholds = policy.Thresholds.Normalize()
	return policy, nil
}

func (c Config) validate() error {
	switch c.LLMProvider {
	case LLMProviderOllama, LLMProviderOpenAI:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.VectorBackend {
	case VectorBackendSQLite, VectorBackendQdrant:
	default:
		return fmt.Errorf("unsupported VECTOR_BACKEND %q", c.VectorBackend)
	}
	return nil
}

// PrimaryCorpus is a web corpus when PrimaryDataPath names a page list, a Q/A corpus otherwise.
func (c Config) PrimaryCorpus() domain.CorpusSpec {
	source := domain.CorpusSource{Name: c.PrimaryCorpusName}
	if isWebList(c.PrimaryDataPath) {
		source.WebListPath = c.PrimaryDataPath
		source.PDFDir = c.PDFDir
		source.IncludePDFs = c.IncludePDFs
	} else {
		source.QADir = c.PrimaryDataPath
	}
	return domain.CorpusSpec{Source: source, IndexPath: c.indexPath(source.Name)}
}

// AlternativeCorpus is always built from the web list, plus PDFs when enabled.
func (c Config) AlternativeCorpus() domain.CorpusSpec {
	source := domain.CorpusSource{
		Name:        c.AlternativeCorpusName,
		WebListPath: c.AlternativeWebList,
		PDFDir:      c.PDFDir,
		IncludePDFs: c.IncludePDFs,
	}
	return domain.CorpusSpec{Source: source, IndexPath: c.indexPath(source.Name)}
}

// CorpusByName resolves "primary" or "alternative" (or their configured names).
func (c Config) CorpusByName(name string) (domain.CorpusSpec, error) {
	switch strings.TrimSpace(name) {
	case "primary", c.PrimaryCorpusName:
		return c.PrimaryCorpus(), nil
	case "alternative", c.AlternativeCorpusName:
		return c.AlternativeCorpus(), nil
	default:
		return domain.CorpusSpec{}, domain.WrapError(domain.ErrInvalidInput, "resolve corpus", fmt.Errorf("unknown corpus %q", name))
	}
}

func (c Config) indexPath(name string) string {
	return filepath.Join(c.IndexDir, name+".db")
}

func isWebList(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
