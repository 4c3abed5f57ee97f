package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/reelrag/internal/config"
	"github.com/cloo-solutions/reelrag/internal/database"
	"github.com/cloo-solutions/reelrag/internal/jobs"
	"github.com/cloo-solutions/reelrag/internal/openai"
	"github.com/cloo-solutions/reelrag/internal/repository"
	"github.com/cloo-solutions/reelrag/internal/scraper"
	"github.com/cloo-solutions/reelrag/internal/service"
	"github.com/cloo-solutions/reelrag/internal/storage"
	"github.com/cloo-solutions/reelrag/internal/telemetry"
	"github.com/cloo-solutions/reelrag/internal/transcription"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
)

// app holds every long-lived collaborator, built once from config.
type app struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	retrieval *service.RetrievalService
	pipeline  *jobs.PipelineJob
}

// newApp connects to the database and constructs the clients the config
// enables. Absent capabilities stay nil and are reported by the run itself.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("connected to database")

	openaiCfg := openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	}

	var embedder service.EmbeddingClient
	if cfg.HasOpenAI() {
		embedder = openai.NewClientWithConfig(openaiCfg)
	} else {
		log.Println("OPENAI_API_KEY not set: embeddings disabled, retrieval uses keyword search")
	}

	items := repository.NewItemRepository(pool)
	chunks := repository.NewChunkRepository(pool)

	var indexer service.PendingIndexer
	if embedder != nil {
		indexer = service.NewIndexerService(
			embedder,
			items,
			chunks,
			service.ChunkConfig{TargetTokens: cfg.ChunkTargetTokens},
			cfg.EmbedDelay,
		)
	}

	archive, err := newRawArchive(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	deps := service.OrchestratorDeps{
		Selector:    service.NewTrendingSelector(cfg.TrendingPerSource),
		Transcriber: newTranscriber(cfg, openaiCfg),
		TxRunner:    repository.NewTxRunner(pool),
		Items:       items,
		Indexer:     indexer,
		Archive:     archive,
	}
	if cfg.HasApify() {
		deps.Primary = scraper.NewApifySource(scraper.ApifyConfig{
			Token:        cfg.ApifyToken,
			Actor:        cfg.ApifyActor,
			PollInterval: cfg.ScrapePollInterval,
			Timeout:      cfg.ScrapeTimeout,
		})
	}
	if cfg.HasManualSource() {
		deps.Fallback = scraper.NewManualSource(cfg.ManualSourcePath)
	}

	var pipeline *jobs.PipelineJob
	if deps.Primary == nil && deps.Fallback == nil {
		log.Println("no content source configured (APIFY_TOKEN with SOURCES, or MANUAL_SOURCE_PATH): pipeline disabled")
		pipeline = jobs.NewPipelineJob(nil)
	} else {
		pipeline = jobs.NewPipelineJob(service.NewOrchestrator(deps, service.PipelineConfig{
			Sources:         cfg.Sources,
			FetchPerSource:  cfg.FetchPerSource,
			TranscribeDelay: cfg.TranscribeDelay,
		}))
	}

	retrieval := service.NewRetrievalService(repository.NewRetrievalRepository(pool), embedder, service.RetrievalConfig{
		VectorWeight:    cfg.VectorWeight,
		KeywordWeight:   cfg.KeywordWeight,
		KeywordScore:    cfg.KeywordScore,
		DefaultLimit:    cfg.RetrieveLimit,
		DefaultMinScore: cfg.RetrieveMinScore,
	})

	return &app{
		cfg:       cfg,
		pool:      pool,
		retrieval: retrieval,
		pipeline:  pipeline,
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
}

// newTranscriber prefers AssemblyAI and falls back to yt-dlp plus Whisper.
// It returns nil when neither path is configured.
func newTranscriber(cfg *config.Config, openaiCfg openai.Config) service.Transcriber {
	var primary, fallback transcription.Transcriber
	if cfg.HasAssemblyAI() {
		primary = transcription.NewAssemblyAI(transcription.AssemblyAIConfig{
			APIKey:       cfg.AssemblyAIAPIKey,
			PollInterval: cfg.TranscribePollInterval,
			Timeout:      cfg.TranscribeTimeout,
		})
	}
	if cfg.HasOpenAI() {
		fallback = transcription.NewLocal(cfg.YtDlpPath, openai.NewWhisper(openaiCfg))
	}
	if primary == nil && fallback == nil {
		log.Println("no transcription backend configured: items are stored without transcripts")
		return nil
	}
	return transcription.NewAdapter(primary, fallback)
}

func newRawArchive(ctx context.Context, cfg *config.Config) (service.RawArchive, error) {
	if !cfg.HasS3() {
		return nil, nil
	}
	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("raw archive bucket '%s' ready", cfg.S3Bucket)
	return storage.NewRawArchive(s3Client), nil
}

// initTelemetry starts Sentry when a DSN is configured. The returned func is
// always safe to call.
func initTelemetry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}

	// 10% sampling in production, everything in development
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}
