// Command engine runs the AutOSINT investigation engine: the Analyst/
// Processor orchestrator, its HTTP API, and the embedding backfill loop.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/autosint/engine/pkg/config"
	"github.com/autosint/engine/pkg/embeddings"
	"github.com/autosint/engine/pkg/external/fetch"
	"github.com/autosint/engine/pkg/external/geo"
	"github.com/autosint/engine/pkg/external/scribe"
	"github.com/autosint/engine/pkg/graph"
	"github.com/autosint/engine/pkg/httpapi"
	"github.com/autosint/engine/pkg/llm"
	"github.com/autosint/engine/pkg/orchestrator"
	"github.com/autosint/engine/pkg/queue"
	"github.com/autosint/engine/pkg/relstore"
	"github.com/autosint/engine/pkg/session"
	"github.com/autosint/engine/pkg/tools"
	"github.com/autosint/engine/pkg/tools/analyst"
	"github.com/autosint/engine/pkg/tools/processor"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	httpAddr := flag.String("http-addr", getEnv("HTTP_ADDR", ":8080"), "address the HTTP API listens on")
	ginMode := getEnv("GIN_MODE", "release")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("no %s loaded, continuing with existing environment: %v", envPath, err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, *configDir)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}
	processor.SetDedupConfig(graph.DedupConfig{
		FuzzyThreshold:     cfg.Doc.Dedup.FuzzyThreshold,
		EmbeddingThreshold: cfg.Doc.Dedup.EmbeddingThreshold,
		ShortlistSize:      cfg.Doc.Dedup.ShortlistSize,
	})

	rel, err := relstore.New(ctx, cfg.Doc.Relational)
	if err != nil {
		log.Fatalf("connecting relational store: %v", err)
	}
	defer rel.Close()

	graphStore, err := graph.NewStore(cfg.Doc.Graph)
	if err != nil {
		log.Fatalf("connecting graph store: %v", err)
	}
	if err := graphStore.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensuring graph schema: %v", err)
	}

	q, err := queue.New(ctx, cfg.Doc.Queue)
	if err != nil {
		log.Fatalf("connecting queue: %v", err)
	}
	defer q.Close()

	embeddingProvider := embeddings.NewHTTPProvider(
		getEnv("EMBEDDINGS_BASE_URL", ""), getEnv("EMBEDDINGS_API_KEY", ""), cfg.Doc.Embeddings.Model)
	embeddingPipeline := embeddings.New(embeddingProvider, cfg.Doc.Retry.Embedding, cfg.Doc.CircuitBreaker, logger)
	go embeddingPipeline.RunBackfill(ctx, cfg.Doc.Embeddings.BackfillInterval, cfg.Doc.Embeddings.BatchSize, entityEmbeddingLister{graphStore})

	fetchClient := fetch.NewClient(cfg.Doc.ExternalModules.FetchBaseURL)
	geoClient := geo.NewClient(cfg.Doc.ExternalModules.GeoBaseURL)
	scribeClient := scribe.NewClient(cfg.Doc.ExternalModules.ScribeBaseURL)

	registry := tools.NewRegistry()
	analyst.Register(registry)
	processor.Register(registry)
	if err := registry.Validate(cfg); err != nil {
		log.Fatalf("validating tool registry: %v", err)
	}

	hctxBase := func(investigationID string, role session.Role) *tools.HandlerContext {
		return &tools.HandlerContext{
			InvestigationID: investigationID,
			Role:            role,
			Config:          cfg,
			Graph:           graphStore,
			Relational:      rel,
			Embeddings:      embeddingPipeline,
			Fetch:           fetchClient,
			Geo:             geoClient,
			Scribe:          scribeClient,
		}
	}
	dispatcher, err := tools.NewDispatcher(registry, cfg, hctxBase)
	if err != nil {
		log.Fatalf("compiling tool schemas: %v", err)
	}

	analystModel, err := buildLLMClient(cfg.Doc.LLM.Analyst)
	if err != nil {
		log.Fatalf("building analyst LLM client: %v", err)
	}
	processorModel, err := buildLLMClient(cfg.Doc.LLM.Processor)
	if err != nil {
		log.Fatalf("building processor LLM client: %v", err)
	}

	eng := orchestrator.New(orchestrator.Deps{
		Config:         cfg,
		Rel:            rel,
		Queue:          q,
		Dispatcher:     dispatcher,
		AnalystModel:   analystModel,
		ProcessorModel: processorModel,
		Logger:         logger,
	})
	if err := eng.Start(ctx); err != nil {
		log.Fatalf("starting orchestrator: %v", err)
	}
	defer eng.Shutdown()

	go func() {
		if err := cfg.WatchAndReload(ctx); err != nil {
			logger.Error("config reload watcher stopped", "error", err)
		}
	}()

	server := httpapi.New(eng, rel, ginMode, logger)
	logger.Info("engine starting", "http_addr", *httpAddr)
	if err := server.Run(*httpAddr); err != nil {
		log.Fatalf("http server: %v", err)
	}
}

// buildLLMClient resolves one session role's provider+model configuration
// into an llm.Client. Anthropic is the only provider implemented; other
// provider names fail fast at startup rather than silently falling back.
func buildLLMClient(cfg config.LLMRoleConfig) (llm.Client, error) {
	switch cfg.Provider {
	case "anthropic", "":
		return llm.NewAnthropicClient(os.Getenv("ANTHROPIC_API_KEY"), cfg.Model)
	default:
		log.Fatalf("unsupported llm provider %q", cfg.Provider)
		return nil, nil
	}
}

// entityEmbeddingLister adapts graph.Store's Entity-typed backfill query
// to embeddings.EntityLister's store-agnostic EmbeddingTarget shape.
type entityEmbeddingLister struct {
	store *graph.Store
}

func (l entityEmbeddingLister) ListEmbeddingPending(ctx context.Context, limit int) ([]embeddings.EmbeddingTarget, error) {
	entities, err := l.store.ListEmbeddingPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]embeddings.EmbeddingTarget, len(entities))
	for i, e := range entities {
		out[i] = embeddings.EmbeddingTarget{ID: e.ID, Text: e.CanonicalName + " " + e.Summary}
	}
	return out, nil
}

func (l entityEmbeddingLister) UpdateEmbedding(ctx context.Context, id string, vector []float32) error {
	return l.store.UpdateEmbedding(ctx, id, vector)
}
