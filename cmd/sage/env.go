package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nkoretz/sage/internal/agent"
	"github.com/nkoretz/sage/internal/config"
	"github.com/nkoretz/sage/internal/knowledge"
	"github.com/nkoretz/sage/internal/llm"
	"github.com/nkoretz/sage/internal/providers"
	"github.com/nkoretz/sage/internal/tools"
	"github.com/nkoretz/sage/internal/tracelog"
)

// runtimeEnv bundles everything a subcommand needs, built once at startup.
type runtimeEnv struct {
	Config       *config.Config
	Log          *zap.Logger
	Client       llm.Client
	Store        *knowledge.Store
	BM25         *knowledge.BM25Index
	Embedder     knowledge.Embedder
	Indexer      *knowledge.Indexer
	Retriever    *knowledge.Retriever
	Registry     *tools.Registry
	Tracer       *tracelog.Logger
	Orchestrator *agent.Orchestrator
}

// prepareRuntimeEnv builds the shared runtime from the environment. A
// positive maxIter overrides the configured iteration bound for this run.
func prepareRuntimeEnv(ctx context.Context, verbose bool, maxIter int) (*runtimeEnv, error) {
	cfg := config.FromEnv()
	if maxIter > 0 {
		cfg.MaxIterations = maxIter
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := tracelog.NewZap(verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if info, err := os.Stat(cfg.DataDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("data directory is not a valid directory: %s", cfg.DataDir)
	}
	if err := os.MkdirAll(cfg.IndexDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	client, err := providers.New(cfg.Provider, cfg.APIKey(), cfg.AgentModel, cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	store, err := knowledge.NewStore(ctx, filepath.Join(cfg.IndexDir, "chunks.db"))
	if err != nil {
		return nil, err
	}

	bm25, err := knowledge.NewBM25Index(filepath.Join(cfg.IndexDir, "chunks.db"), log)
	if err != nil {
		store.Close()
		return nil, err
	}

	// Embeddings come from OpenAI when a key is present; otherwise a
	// deterministic local embedder keeps retrieval working offline.
	var embedder knowledge.Embedder
	if cfg.OpenAIKey != "" {
		embedder = knowledge.NewOpenAIEmbedder(cfg.OpenAIKey, cfg.EmbeddingModel, cfg.EmbeddingDim, cfg.BaseURL)
	} else {
		embedder = knowledge.NewHashEmbedder(cfg.EmbeddingDim)
	}

	chunker := knowledge.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	indexer := knowledge.NewIndexer(store, bm25, embedder, chunker, cfg.DataDir, log)
	retriever := knowledge.NewRetriever(store, bm25, embedder, log)

	tracer, err := tracelog.New(cfg.LogDir, log)
	if err != nil {
		bm25.Close()
		store.Close()
		return nil, err
	}

	registry := tools.NewRegistry(log)
	registry.Register(tools.NewCalculator())
	registry.Register(tools.NewClock())
	registry.Register(tools.NewTableFormatter())
	registry.Register(tools.NewListFormatter())
	registry.Register(tools.NewSearchTool(retriever, store, cfg.TopK))
	registry.Register(tools.NewStatsTool(store))

	orchestrator := agent.NewOrchestrator(
		client,
		&retrieverAdapter{retriever: retriever},
		registry,
		tracer,
		agent.Options{
			MaxIterations:     cfg.MaxIterations,
			TopK:              cfg.TopK,
			PerCollectionTopK: cfg.PerCollectionTopK,
			Temperature:       cfg.AgentTemp,
			ReflectionEnabled: cfg.ReflectionEnabled,
			MinConfidence:     cfg.MinConfidence,
		},
		log,
	)

	return &runtimeEnv{
		Config:       cfg,
		Log:          log,
		Client:       client,
		Store:        store,
		BM25:         bm25,
		Embedder:     embedder,
		Indexer:      indexer,
		Retriever:    retriever,
		Registry:     registry,
		Tracer:       tracer,
		Orchestrator: orchestrator,
	}, nil
}

func (e *runtimeEnv) Close() {
	if e.BM25 != nil {
		_ = e.BM25.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
	if e.Log != nil {
		_ = e.Log.Sync()
	}
}

// newJudgeClient builds a second client on the evaluation model.
func newJudgeClient(e *runtimeEnv) (llm.Client, error) {
	return providers.New(e.Config.Provider, e.Config.APIKey(), e.Config.EvalModel, e.Config.BaseURL)
}

// retrieverAdapter bridges the knowledge retriever into the narrower
// contract the orchestrator consumes.
type retrieverAdapter struct {
	retriever *knowledge.Retriever
}

func (a *retrieverAdapter) Search(ctx context.Context, query, collection string, topK int) ([]agent.ContextChunk, error) {
	chunks, err := a.retriever.Search(ctx, query, collection, topK)
	if err != nil {
		return nil, err
	}
	out := make([]agent.ContextChunk, len(chunks))
	for i, c := range chunks {
		out[i] = agent.ContextChunk{Text: c.Text, Source: c.Source, Collection: c.Collection}
	}
	return out, nil
}
