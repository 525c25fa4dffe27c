package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration for the gateway and the shield worker.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10MB in bytes

	// LLM
	LLMProvider       string        `env:"LLM_PROVIDER" envDefault:"gemini"` // "gemini", "openai", "anthropic" or "stub"
	GeminiKey         string        `env:"GEMINI_API_KEY"`
	OpenAIKey         string        `env:"OPENAI_API_KEY"`
	AnthropicKey      string        `env:"ANTHROPIC_API_KEY"`
	ExtractionModel   string        `env:"EXTRACTION_MODEL"`   // provider default when empty
	ConversationModel string        `env:"CONVERSATION_MODEL"` // provider default when empty
	LLMTimeout        time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"` // 0 disables model and request timeouts

	// Coaching
	ProfileTurnThreshold int    `env:"PROFILE_TURN_THRESHOLD" envDefault:"2"`
	PromptsPath          string `env:"PROMPTS_PATH"` // embedded catalog when empty

	// Store
	StoreProvider string        `env:"STORE_PROVIDER" envDefault:"memory"` // "memory", "redis" or "postgres"
	DBURL         string        `env:"DB_URL"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// Queue
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"local"` // "local" (in-process), "nats" or "amqp"
	QueueURL      string `env:"QUEUE_URL"`

	// Anonymization cache
	CacheProvider     string        `env:"CACHE_PROVIDER" envDefault:"noop"` // "noop" or "redis"
	AnonymizeCacheTTL time.Duration `env:"ANONYMIZE_CACHE_TTL" envDefault:"168h"`

	// Upload archive
	BlobProvider  string `env:"BLOB_PROVIDER" envDefault:"none"` // "none" or "s3"
	BlobBucket    string `env:"BLOB_BUCKET"`
	BlobEndpoint  string `env:"BLOB_ENDPOINT"`
	BlobRegion    string `env:"BLOB_REGION" envDefault:"auto"`
	BlobAccessKey string `env:"BLOB_ACCESS_KEY"`
	BlobSecretKey string `env:"BLOB_SECRET_KEY"`
}

var defaultModels = map[string][2]string{
	"gemini":    {"gemini-3-pro-preview", "gemini-3-flash-preview"},
	"openai":    {"gpt-4o-mini", "gpt-4o-mini"},
	"anthropic": {"claude-sonnet-4-5", "claude-haiku-4-5"},
}

// Models returns the extraction and conversation model names, falling back
// to the provider's defaults for any left empty.
func (c Config) Models() (extraction, conversation string) {
	d := defaultModels[c.LLMProvider]
	extraction, conversation = c.ExtractionModel, c.ConversationModel
	if extraction == "" {
		extraction = d[0]
	}
	if conversation == "" {
		conversation = d[1]
	}
	return extraction, conversation
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
