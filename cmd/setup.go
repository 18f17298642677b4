package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	openai "github.com/sashabaranov/go-openai"

	"github.com/akiyama0/storemind/internal/agent"
	"github.com/akiyama0/storemind/internal/analytics"
	"github.com/akiyama0/storemind/internal/chunk"
	"github.com/akiyama0/storemind/internal/classify"
	"github.com/akiyama0/storemind/internal/config"
	"github.com/akiyama0/storemind/internal/embed"
	"github.com/akiyama0/storemind/internal/history"
	"github.com/akiyama0/storemind/internal/knowledge"
	"github.com/akiyama0/storemind/internal/llm"
	"github.com/akiyama0/storemind/internal/log"
	"github.com/akiyama0/storemind/internal/merge"
	"github.com/akiyama0/storemind/internal/tool"
	"github.com/akiyama0/storemind/internal/vector"
	"github.com/akiyama0/storemind/internal/vector/memory"
	"github.com/akiyama0/storemind/internal/vector/postgres"
)

// app holds every wired component. Built once per process by setup.
type app struct {
	cfg    *config.Config
	logger log.Logger

	pool     *pgxpool.Pool
	index    *memory.Index
	store    *postgres.Store
	embedder embed.Embedder
	pipeline *knowledge.Pipeline
	sessions *agent.Cache
}

// setup connects to PostgreSQL, warms the in-memory index from the persisted
// documents and wires the retrieval, tool and agent layers.
func setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*app, error) {
	pool, err := postgres.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	store := postgres.New(pool, logger)

	index := memory.New(cfg.EmbedderDimension, []string{
		vector.FilterKeyStoreID,
		vector.FilterKeyDate,
		vector.FilterKeyCategory,
	}, logger)
	docs, err := store.LoadAll(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("loading persisted documents: %w", err)
	}
	for _, doc := range docs {
		if err := index.Upsert(doc); err != nil {
			logger.Warn("skipping bad persisted document",
				"source_type", doc.SourceType, "source_id", doc.SourceID, "error", err)
		}
	}
	logger.Info("index warmed", "documents", index.Len())

	apiKey := os.Getenv("OPENAI_API_KEY")
	embedder := embed.NewOpenAI(newOpenAIClient(apiKey, cfg.BaseURL), embed.OpenAIConfig{
		Model:     cfg.EmbedderModel,
		Dimension: cfg.EmbedderDimension,
	}, logger)

	classifier := classify.New(classifierConfig(cfg))
	merger := merge.New(0, logger)
	retriever := tool.NewRetriever(classifier, embedder, index, merger, logger)
	registry := tool.NewRegistry(retriever, analytics.New(pool, logger), logger)
	executor := tool.NewExecutor(tool.ExecutionMode(cfg.ToolExecutionMode), 0, logger)
	hist := history.NewStore(pool, logger)

	chunker := chunk.New(chunk.Config{
		MaxTokens:     cfg.ChunkMaxTokens,
		OverlapTokens: cfg.ChunkOverlapTokens,
	})
	pipeline := knowledge.NewPipeline(chunker, embedder, index, store, logger)

	sessions, err := agent.NewCache(cfg.AgentCacheSize, func(model string, temperature float32, credential string) (*agent.Session, error) {
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  credential,
			BaseURL: cfg.BaseURL,
			Model:   model,
		}, logger)
		if err != nil {
			return nil, err
		}
		return agent.New(agent.Config{
			Client:        client,
			Registry:      registry,
			Executor:      executor,
			History:       hist,
			Logger:        logger,
			Temperature:   temperature,
			MaxToolRounds: cfg.MaxToolRounds,
			HistoryLimit:  cfg.MaxHistoryTurns,
		})
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating session cache: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		index:    index,
		store:    store,
		embedder: embedder,
		pipeline: pipeline,
		sessions: sessions,
	}, nil
}

// Close releases the database pool.
func (a *app) Close() {
	a.pool.Close()
}

// loadConfig loads and validates configuration for commands that need the
// full stack.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// classifierConfig starts from the stock marker lists and applies the
// configured result budgets.
func classifierConfig(cfg *config.Config) classify.Config {
	c := classify.DefaultConfig()
	if cfg.TopKDefault > 0 {
		c.DefaultK = cfg.TopKDefault
	}
	if cfg.TopKSpecific > 0 {
		c.SpecificK = cfg.TopKSpecific
	}
	if cfg.TopKTrend > 0 {
		c.TrendK = cfg.TopKTrend
	}
	if cfg.TopKComprehensive > 0 {
		c.ComprehensiveK = cfg.TopKComprehensive
	}
	return c
}
