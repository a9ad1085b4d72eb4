package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"docsage-uploads"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel  string `envconfig:"EMBEDDING_MODEL"`
	CompletionModel string `envconfig:"COMPLETION_MODEL" default:"gpt-4o-mini"`

	// Chunking
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`

	// Embedding batch throttle
	EmbedBatchSize    int           `envconfig:"EMBED_BATCH_SIZE" default:"5"`
	EmbedBatchDelay   time.Duration `envconfig:"EMBED_BATCH_DELAY" default:"1s"`
	RateLimitCooldown time.Duration `envconfig:"RATE_LIMIT_COOLDOWN" default:"20s"`
	MaxRetryAttempts  int           `envconfig:"MAX_RETRY_ATTEMPTS" default:"3"`

	// Token budgets (1 token is estimated as 4 characters of English text)
	FewShotTokenBudget  int           `envconfig:"FEWSHOT_TOKEN_BUDGET" default:"40000"`
	ContextTokenBudget  int           `envconfig:"CONTEXT_TOKEN_BUDGET" default:"6000"`
	ExampleTokenBudget  int           `envconfig:"EXAMPLE_TOKEN_BUDGET" default:"1500"`
	RequestTokenCeiling int           `envconfig:"REQUEST_TOKEN_CEILING" default:"8000"`
	FallbackTokenBudget int           `envconfig:"FALLBACK_TOKEN_BUDGET" default:"3000"`
	AnswerMaxTokens     int           `envconfig:"ANSWER_MAX_TOKENS" default:"700"`
	SourcePreviewChars  int           `envconfig:"SOURCE_PREVIEW_CHARS" default:"200"`
	MinUsefulTailTokens int           `envconfig:"MIN_USEFUL_TAIL_TOKENS" default:"50"`
	FewShotRequestDelay time.Duration `envconfig:"FEWSHOT_REQUEST_DELAY" default:"2s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCSAGE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
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
