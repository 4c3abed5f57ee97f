package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-large"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"3072"`

	AssemblyAIAPIKey       string        `envconfig:"ASSEMBLYAI_API_KEY"`
	TranscribePollInterval time.Duration `envconfig:"TRANSCRIBE_POLL_INTERVAL" default:"5s"`
	TranscribeTimeout      time.Duration `envconfig:"TRANSCRIBE_TIMEOUT" default:"5m"`
	YtDlpPath              string        `envconfig:"YTDLP_PATH" default:"yt-dlp"`

	ApifyToken         string        `envconfig:"APIFY_TOKEN"`
	ApifyActor         string        `envconfig:"APIFY_ACTOR" default:"apify/instagram-scraper"`
	ScrapePollInterval time.Duration `envconfig:"SCRAPE_POLL_INTERVAL" default:"10s"`
	ScrapeTimeout      time.Duration `envconfig:"SCRAPE_TIMEOUT" default:"10m"`
	ManualSourcePath   string        `envconfig:"MANUAL_SOURCE_PATH"`

	// Pipeline tuning
	Sources           []string      `envconfig:"SOURCES"`
	FetchPerSource    int           `envconfig:"FETCH_PER_SOURCE" default:"120"`
	TrendingPerSource int           `envconfig:"TRENDING_PER_SOURCE" default:"5"`
	ChunkTargetTokens int           `envconfig:"CHUNK_TARGET_TOKENS" default:"800"`
	TranscribeDelay   time.Duration `envconfig:"TRANSCRIBE_DELAY" default:"1s"`
	EmbedDelay        time.Duration `envconfig:"EMBED_DELAY" default:"100ms"`
	PipelineInterval  time.Duration `envconfig:"PIPELINE_INTERVAL" default:"0"`

	// Retrieval tuning
	VectorWeight     float64 `envconfig:"VECTOR_WEIGHT" default:"0.7"`
	KeywordWeight    float64 `envconfig:"KEYWORD_WEIGHT" default:"0.3"`
	KeywordScore     float64 `envconfig:"KEYWORD_SCORE" default:"0.5"`
	RetrieveLimit    int     `envconfig:"RETRIEVE_LIMIT" default:"8"`
	RetrieveMinScore float64 `envconfig:"RETRIEVE_MIN_SCORE" default:"0.7"`

	// Raw fetch archive
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"reelrag-raw"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("REELRAG", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects tuning values that would make the pipeline or scoring
// meaningless.
func (c *Config) Validate() error {
	if c.TrendingPerSource <= 0 {
		return fmt.Errorf("TRENDING_PER_SOURCE must be positive, got %d", c.TrendingPerSource)
	}
	if c.FetchPerSource < c.TrendingPerSource {
		return fmt.Errorf("FETCH_PER_SOURCE (%d) must be at least TRENDING_PER_SOURCE (%d)", c.FetchPerSource, c.TrendingPerSource)
	}
	if c.ChunkTargetTokens <= 0 {
		return fmt.Errorf("CHUNK_TARGET_TOKENS must be positive, got %d", c.ChunkTargetTokens)
	}
	if c.VectorWeight < 0 || c.KeywordWeight < 0 || c.VectorWeight+c.KeywordWeight > 1.0000001 {
		return fmt.Errorf("VECTOR_WEIGHT and KEYWORD_WEIGHT must be non-negative and sum to at most 1")
	}
	if c.KeywordScore < 0 || c.KeywordScore > 1 {
		return fmt.Errorf("KEYWORD_SCORE must be within [0,1]")
	}
	if c.RetrieveLimit <= 0 {
		return fmt.Errorf("RETRIEVE_LIMIT must be positive, got %d", c.RetrieveLimit)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDimensions)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasAssemblyAI() bool {
	return c.AssemblyAIAPIKey != ""
}

func (c *Config) HasApify() bool {
	return c.ApifyToken != "" && len(c.Sources) > 0
}

func (c *Config) HasManualSource() bool {
	return c.ManualSourcePath != ""
}
