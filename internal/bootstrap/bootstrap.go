package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jungujeong/GovRAG-sub000/internal/config"
	"github.com/jungujeong/GovRAG-sub000/internal/core/ports"
	"github.com/jungujeong/GovRAG-sub000/internal/core/usecase"
	"github.com/jungujeong/GovRAG-sub000/internal/infrastructure/embedding/ollama"
	"github.com/jungujeong/GovRAG-sub000/internal/infrastructure/index/lexical"
	"github.com/jungujeong/GovRAG-sub000/internal/infrastructure/index/vector"
	"github.com/jungujeong/GovRAG-sub000/internal/infrastructure/queue/nats"
	"github.com/jungujeong/GovRAG-sub000/internal/infrastructure/repository/postgres"
	"github.com/jungujeong/GovRAG-sub000/internal/infrastructure/rerank/crossencoder"
	"github.com/jungujeong/GovRAG-sub000/internal/infrastructure/resilience"
)

// App wires configuration into the concrete adapters and use cases shared
// by the api and worker binaries. The chunk indexes are process-local:
// the worker consumes batches through the indexer queue group and owns
// registry status updates, while the api keeps its own index replica by
// consuming the same stream in fanout mode through the Replica ingestor.
type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Registry ports.DocumentRegistry
	Sessions ports.SessionStore

	Resolver ports.TurnResolver
	Ingestor ports.ChunkIngestor
	// Replica indexes batches without touching the registry; the worker's
	// Ingestor is the only writer of document status rows.
	Replica ports.ChunkIngestor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	registry := postgres.NewDocumentRegistry(db)
	sessions := postgres.NewSessionRepository(db)

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.Options{
		ResilienceExecutor: executor,
	})

	var reranker ports.Reranker
	if cfg.RerankerURL != "" {
		reranker = crossencoder.NewWithOptions(cfg.RerankerURL, crossencoder.Options{
			ResilienceExecutor: executor,
		})
	}

	lexicalIndex := lexical.NewIndex()
	vectorIndex := vector.NewIndex()

	resolver := usecase.NewResolveTurnUseCase(lexicalIndex, vectorIndex, embedder, reranker, retrievalConfig(cfg))
	ingestor := usecase.NewIngestChunksUseCase(lexicalIndex, vectorIndex, embedder, registry)
	replica := usecase.NewIngestChunksUseCase(lexicalIndex, vectorIndex, embedder, nil)

	return &App{
		Config: cfg,

		Queue:    queue,
		Registry: registry,
		Sessions: sessions,

		Resolver: resolver,
		Ingestor: ingestor,
		Replica:  replica,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func retrievalConfig(cfg config.Config) usecase.RetrievalConfig {
	out := usecase.DefaultRetrievalConfig()

	out.HybridCandidates = cfg.RetrievalHybridCandidates
	out.DefaultTopK = cfg.RetrievalTopK
	out.IndexTimeout = time.Duration(cfg.RetrievalIndexTimeoutSecs) * time.Second

	out.Fusion.LexicalWeight = cfg.RetrievalLexicalWeight
	out.Fusion.VectorWeight = cfg.RetrievalVectorWeight
	out.Fusion.K = cfg.RetrievalFusionRRFK

	out.Relevance.HybridFloor = cfg.RetrievalHybridFloor
	out.Relevance.KeywordFloor = cfg.RetrievalKeywordFloor
	out.Relevance.KeywordStrong = cfg.RetrievalKeywordStrong

	out.Rerank.Weight = cfg.RetrievalRerankWeight

	out.TopicShift.MarginThreshold = cfg.TopicMarginThreshold
	out.TopicShift.ContextBonus = cfg.TopicContextBonus
	out.TopicShift.MaxSuggestedDocs = cfg.TopicMaxSuggested

	return out
}
