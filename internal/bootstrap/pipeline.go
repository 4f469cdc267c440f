package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/kirillkom/document-sorter/internal/config"
	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
	"github.com/kirillkom/document-sorter/internal/core/usecase"
	"github.com/kirillkom/document-sorter/internal/infrastructure/archive"
	"github.com/kirillkom/document-sorter/internal/infrastructure/cache/jsonfile"
	"github.com/kirillkom/document-sorter/internal/infrastructure/cache/memory"
	"github.com/kirillkom/document-sorter/internal/infrastructure/clustering/hdbscan"
	"github.com/kirillkom/document-sorter/internal/infrastructure/extractor"
	"github.com/kirillkom/document-sorter/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/document-sorter/internal/infrastructure/llm/openai"
	"github.com/kirillkom/document-sorter/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-sorter/internal/infrastructure/resilience"
	"github.com/kirillkom/document-sorter/internal/observability/metrics"
)

// Pipeline is the synchronous organize stack shared by the CLI, the API and
// the worker.
type Pipeline struct {
	Organizer *usecase.OrganizeUseCase
	Caches    usecase.Caches
	Packager  *archive.Assembler
}

type PipelineDeps struct {
	Logger  *slog.Logger
	Metrics *metrics.PipelineMetrics
	// DB backs CACHE_BACKEND=postgres.
	DB *sql.DB
}

func NewPipeline(cfg config.Config, deps PipelineDeps) (*Pipeline, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	identity := domain.IdentityMode(strings.ToLower(cfg.DocumentIdentity))
	if identity != domain.IdentityFilename && identity != domain.IdentityContent {
		return nil, fmt.Errorf("unknown DOCUMENT_IDENTITY %q", cfg.DocumentIdentity)
	}
	preset, err := domain.ParseClusterPreset(cfg.ClusterPreset)
	if err != nil {
		return nil, err
	}

	caches, err := NewCaches(cfg, deps.DB, logger)
	if err != nil {
		return nil, err
	}

	executor := resilience.NewExecutor(cfg.Resilience(), logger)
	var pipelineMetrics ports.PipelineMetrics
	if deps.Metrics != nil {
		executor = executor.WithObserver(deps.Metrics.ObserveCall)
		pipelineMetrics = deps.Metrics
	}

	summarizer, embedder, generator, err := newProviders(cfg, executor)
	if err != nil {
		return nil, err
	}

	normalizer := usecase.NewNormalizer(summarizer, caches.Normalized, usecase.NormalizerConfig{
		SnippetChars: cfg.NormalizeSnippetChars,
		Workers:      cfg.NormalizeWorkers,
	}, logger)
	embeddings := usecase.NewEmbeddingCache(embedder, caches.Embeddings, cfg.EmbedBatchSize, logger)
	splitter := usecase.NewSplitter(hdbscan.New(), usecase.SplitterConfig{
		MaxGroupSize: cfg.MaxGroupSize,
		MaxDepth:     cfg.MaxRecursionDepth,
		GroupLevels:  cfg.GroupLevels,
		Params:       preset.Params(),
	}, logger)
	namer := usecase.NewNamer(generator, caches.GroupNames, caches.Descriptions, logger)

	organizer := usecase.NewOrganizeUseCase(
		extractor.NewRegistry(),
		normalizer,
		embeddings,
		splitter,
		namer,
		pipelineMetrics,
		usecase.OrganizeConfig{
			Identity:           identity,
			DefaultPreset:      preset,
			GuideMinSimilarity: cfg.GuideMinSimilarity,
		},
		logger,
	)

	return &Pipeline{
		Organizer: organizer,
		Caches:    caches,
		Packager:  archive.New(),
	}, nil
}

// OpenCacheDB connects to Postgres only when it backs the caches; the CLI
// otherwise runs without a database.
func OpenCacheDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if !strings.EqualFold(cfg.CacheBackend, "postgres") {
		return nil, nil
	}
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

// NewCaches opens the four cache tables on the configured backend.
func NewCaches(cfg config.Config, db *sql.DB, logger *slog.Logger) (usecase.Caches, error) {
	open := func(name string) (ports.CacheStore, error) {
		switch strings.ToLower(cfg.CacheBackend) {
		case "", "jsonfile":
			return jsonfile.Open(filepath.Join(cfg.CacheDir, name+".json"), logger)
		case "memory":
			return memory.New(), nil
		case "postgres":
			if db == nil {
				return nil, fmt.Errorf("CACHE_BACKEND=postgres needs POSTGRES_DSN")
			}
			return postgres.NewCacheStore(db, name, logger), nil
		default:
			return nil, fmt.Errorf("unknown CACHE_BACKEND %q", cfg.CacheBackend)
		}
	}

	stores := make(map[string]ports.CacheStore, len(usecase.CacheTables))
	for _, name := range usecase.CacheTables {
		store, err := open(name)
		if err != nil {
			return usecase.Caches{}, fmt.Errorf("open cache %s: %w", name, err)
		}
		stores[name] = store
	}
	return usecase.Caches{
		Normalized:   stores["normalized"],
		Embeddings:   stores["embeddings"],
		GroupNames:   stores["group_names"],
		Descriptions: stores["descriptions"],
	}, nil
}

func newProviders(cfg config.Config, executor *resilience.Executor) (ports.Summarizer, ports.EmbeddingProvider, ports.GroupTextGenerator, error) {
	switch strings.ToLower(cfg.LLMProvider) {
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, cfg.LLMTimeout, executor)
		return ollama.NewSummarizer(client), ollama.NewEmbedder(client), ollama.NewGenerator(client), nil
	case "", "openai":
		if cfg.OpenAIAPIKey == "" && strings.Contains(cfg.OpenAIBaseURL, "api.openai.com") {
			return nil, nil, nil, fmt.Errorf("OPENAI_API_KEY is required for %s", cfg.OpenAIBaseURL)
		}
		client := openai.New(openai.Config{
			BaseURL:     cfg.OpenAIBaseURL,
			APIKey:      cfg.OpenAIAPIKey,
			ChatModel:   cfg.OpenAIChatModel,
			EmbedModel:  cfg.OpenAIEmbedModel,
			Temperature: cfg.OpenAITemperature,
			Timeout:     cfg.LLMTimeout,
		}, executor)
		return openai.NewSummarizer(client), openai.NewEmbedder(client), openai.NewGenerator(client), nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}
