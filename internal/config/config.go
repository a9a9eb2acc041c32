package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full runtime configuration, loaded once at startup and
// immutable afterwards.
type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// Knowledge store and corpus location.
	StorePath string `envconfig:"STORE_PATH" default:"data/kb.db"`
	DocsDir   string `envconfig:"DOCS_DIR" default:"docs"`

	// Optional S3 corpus source; takes precedence over DocsDir when set.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"jtskb-corpus"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Prefix    string `envconfig:"S3_PREFIX"`

	// Index build.
	ChunkMaxLen  int           `envconfig:"CHUNK_MAX_LEN" default:"512"`
	ChunkOverlap int           `envconfig:"CHUNK_OVERLAP" default:"64"`
	EmbedWorkers int           `envconfig:"EMBED_WORKERS" default:"4"`
	ReindexEvery time.Duration `envconfig:"REINDEX_EVERY" default:"5m"`

	// Retrieval and prompt assembly.
	TopK        int     `envconfig:"TOP_K" default:"3"`
	MinScore    float32 `envconfig:"MIN_SCORE" default:"0.25"`
	TokenBudget int     `envconfig:"TOKEN_BUDGET" default:"1024"`
	MaxHistory  int     `envconfig:"MAX_HISTORY" default:"10"`

	// Generation.
	MaxTokens   int     `envconfig:"MAX_TOKENS" default:"150"`
	Temperature float32 `envconfig:"TEMPERATURE" default:"0.3"`

	// Tier chain, highest priority first.
	TierOrder        []string      `envconfig:"TIER_ORDER" default:"remote,cloud,local"`
	TierTimeout      time.Duration `envconfig:"TIER_TIMEOUT" default:"30s"`
	QueryConcurrency int           `envconfig:"QUERY_CONCURRENCY" default:"4"`

	RemoteServiceURL string `envconfig:"REMOTE_SERVICE_URL"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	CloudModel   string `envconfig:"CLOUD_MODEL"`

	LocalModelURL  string `envconfig:"LOCAL_MODEL_URL" default:"http://localhost:11434"`
	LocalModelName string `envconfig:"LOCAL_MODEL_NAME" default:"llama3.2:1b"`

	// Embedding provider: "openai" or "local". Zero dimensions means the
	// provider's default (1536 for openai, 384 for local all-minilm).
	EmbeddingProvider string `envconfig:"EMBEDDING_PROVIDER" default:"openai"`
	EmbeddingModel    string `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDims     int    `envconfig:"EMBEDDING_DIMENSIONS" default:"0"`
	EmbeddingURL      string `envconfig:"EMBEDDING_URL" default:"http://localhost:11434"`

	// Response cache.
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"10m"`
	CacheCapacity int           `envconfig:"CACHE_CAPACITY" default:"256"`

	SentryDSN string `envconfig:"SENTRY_DSN"`
}

// Load reads configuration from the environment, honoring a .env file when
// present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("JTSKB", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.ChunkOverlap >= cfg.ChunkMaxLen {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk max length (%d)",
			cfg.ChunkOverlap, cfg.ChunkMaxLen)
	}
	if len(cfg.TierOrder) == 0 {
		return nil, fmt.Errorf("at least one generation tier must be configured")
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

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasRemote() bool {
	return c.RemoteServiceURL != ""
}
