package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kirillkom/policy-advisor/internal/config"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
	"github.com/kirillkom/policy-advisor/internal/core/usecase"
	"github.com/kirillkom/policy-advisor/internal/infrastructure/chunking"
	"github.com/kirillkom/policy-advisor/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/policy-advisor/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/policy-advisor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/policy-advisor/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/policy-advisor/internal/infrastructure/resilience"
	"github.com/kirillkom/policy-advisor/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/policy-advisor/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/policy-advisor/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Metrics *metrics.AdvisorMetrics

	Queue     ports.MessageQueue
	Documents ports.UploadedPolicyStore

	Ingest       *usecase.IngestPolicyUseCase
	Process      *usecase.ProcessPolicyUseCase
	Verdicts     *usecase.VerdictSynthesizer
	Explainer    *usecase.DocumentExplainer
	Gaps         *usecase.GapAnalysisUseCase
	Claims       *usecase.ClaimUseCase
	Compare      *usecase.CompareUseCase
	Discover     *usecase.DiscoverUseCase
	Catalog      *usecase.CatalogUseCase
	Conditions   *usecase.ConditionExtractionUseCase
	Conversation *usecase.ConversationUseCase
	Sessions     *usecase.ChatSessionUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, m *metrics.AdvisorMetrics) (*App, error) {
	if m == nil {
		m = metrics.NewAdvisorMetrics("policy-advisor")
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db, cfg.EmbedDimensions); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	infraExecutor := resilience.NewExecutor(resilienceConfig(cfg)).OnRetry(m.RecordRetry)

	queue, err := nats.Connect(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: infraExecutor,
		LagObserver:        m.ObserveQueueLag,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	modelCfg := resilienceConfig(cfg)
	modelCfg.RequestsPerSecond = cfg.OllamaRequestsPerSecond
	modelCfg.Burst = cfg.OllamaBurst
	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel,
		ollama.WithExecutor(resilience.NewExecutor(modelCfg).OnRetry(m.RecordRetry)),
		ollama.WithTemperature(cfg.OllamaTemperature),
		ollama.WithHTTPClient(&http.Client{Timeout: cfg.OllamaTimeout}),
	)
	llm := ollama.NewLanguageModel(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)

	documents := postgres.NewUploadedPolicyRepository(db)
	catalog := postgres.NewCatalogRepository(db)
	sessions := postgres.NewSessionRepository(db)
	index := chunkIndex(cfg, db, infraExecutor)

	retriever := usecase.NewHybridRetriever(index, m, usecase.RetrievalOptions{
		Candidates:  cfg.RAGCandidates,
		FusedTopK:   cfg.RAGFusedTopK,
		SectionTopK: cfg.RAGSectionTopK,
		RRFK:        cfg.RAGFusionRRFK,
	})
	verdicts := usecase.NewVerdictSynthesizer(documents, embedder, retriever, llm, m)
	explainer := usecase.NewDocumentExplainer(embedder, retriever, llm)

	extractor := pdftext.NewExtractor(storage)
	process := usecase.NewProcessPolicyUseCase(
		documents,
		extractor,
		chunking.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		index,
		cfg.EmbedBatchSize,
	)
	conversation := usecase.NewConversationUseCase(llm, catalog, documents, verdicts, explainer, m, usecase.ConversationOptions{
		HistoryWindow:    cfg.ChatContextMsgs,
		SummaryThreshold: cfg.ChatSummaryChars,
		RecommendLimit:   cfg.RecommendLimit,
		EnrichTop:        cfg.RecommendEnrich,
	})

	return &App{
		Config:    cfg,
		Metrics:   m,
		Queue:     queue,
		Documents: documents,

		Ingest:       usecase.NewIngestPolicyUseCase(documents, storage, queue, process),
		Process:      process,
		Verdicts:     verdicts,
		Explainer:    explainer,
		Gaps:         usecase.NewGapAnalysisUseCase(catalog, documents, verdicts),
		Claims:       usecase.NewClaimUseCase(documents, verdicts),
		Compare:      usecase.NewCompareUseCase(catalog, llm),
		Discover:     usecase.NewDiscoverUseCase(llm, catalog, cfg.RecommendLimit),
		Catalog:      usecase.NewCatalogUseCase(catalog),
		Conditions:   usecase.NewConditionExtractionUseCase(llm, extractor, catalog),
		Conversation: conversation,
		Sessions:     usecase.NewChatSessionUseCase(sessions, conversation),

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

func chunkIndex(cfg config.Config, db *sql.DB, executor *resilience.Executor) ports.ChunkIndex {
	if cfg.ChunkIndexBackend == config.BackendQdrant {
		slog.Info("chunk_index_selected", "backend", "qdrant", "collection", cfg.QdrantCollection)
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)
	}
	slog.Info("chunk_index_selected", "backend", "postgres")
	return postgres.NewChunkRepository(db, cfg.ChunkInsertBatchSize)
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.RetryMaxAttempts
	out.RetryInitialBackoff = cfg.RetryInitialBackoff
	out.RetryMaxBackoff = cfg.RetryMaxBackoff
	out.BreakerEnabled = cfg.BreakerEnabled
	if cfg.BreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.BreakerMinRequests)
	}
	out.BreakerFailureRatio = cfg.BreakerFailureRatio
	out.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	return out
}
