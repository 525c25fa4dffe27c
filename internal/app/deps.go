package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/streadway/amqp"

	"bridgeai/internal/blob"
	"bridgeai/internal/cache"
	"bridgeai/internal/catalog"
	"bridgeai/internal/coach"
	"bridgeai/internal/config"
	"bridgeai/internal/intake"
	"bridgeai/internal/llm"
	"bridgeai/internal/logger"
	"bridgeai/internal/prompts"
	"bridgeai/internal/queue"
	"bridgeai/internal/shield"
	"bridgeai/internal/store"
)

// Deps bundles common runtime dependencies for services.
type Deps struct {
	Config  config.Config
	Log     *slog.Logger
	Store   store.Store
	Queue   queue.Queue
	Cache   cache.Cache
	Archive blob.Archive
	LLM     llm.Generator
	Prompts *prompts.Catalog
	Content *catalog.Catalog

	closers []func() error
}

// Build loads env, config, and shared components.
func Build(ctx context.Context) (Deps, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Deps{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	deps := Deps{Config: cfg, Log: log}

	var err error
	if deps.Prompts, err = buildPrompts(cfg); err != nil {
		return Deps{}, fmt.Errorf("failed to load prompts: %w", err)
	}
	if deps.Content, err = catalog.Load(); err != nil {
		return Deps{}, fmt.Errorf("failed to load content catalog: %w", err)
	}
	if deps.Store, err = buildStore(cfg, log); err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	deps.closers = append(deps.closers, deps.Store.Close)

	q, closeQueue, err := buildQueue(cfg, log)
	if err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	deps.Queue = q
	deps.closers = append(deps.closers, closeQueue)

	if deps.Cache, err = buildCache(cfg, log); err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}
	deps.closers = append(deps.closers, deps.Cache.Close)

	if deps.Archive, err = buildArchive(ctx, cfg, log); err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize upload archive: %w", err)
	}
	if deps.LLM, err = buildLLM(ctx, cfg, log); err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return deps, nil
}

// Close releases connections opened by Build.
func (d Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && d.Log != nil {
			d.Log.Warn("failed to close dependency", "err", err)
		}
	}
}

// Coach builds the model client used by both services.
func (d Deps) Coach() *coach.Coach {
	extraction, conversation := d.Config.Models()
	return coach.New(d.LLM, d.Prompts, coach.Models{
		Extraction:   extraction,
		Conversation: conversation,
	}, d.Config.LLMTimeout, d.Log)
}

// Shield builds the bias shield service.
func (d Deps) Shield(c *coach.Coach) *shield.Service {
	return shield.New(c, d.Cache, d.Store, shield.Options{
		PromptVersion: d.Prompts.Version,
		CacheTTL:      d.Config.AnonymizeCacheTTL,
		DemoProfile:   d.Content.DemoProfile,
	}, d.Log)
}

// Intake builds the session service.
func (d Deps) Intake(c *coach.Coach) *intake.Service {
	return intake.New(d.Store, c, d.Prompts, d.Content, d.Queue, d.Archive, intake.Options{
		TurnThreshold: d.Config.ProfileTurnThreshold,
	}, d.Log)
}

func buildPrompts(cfg config.Config) (*prompts.Catalog, error) {
	if cfg.PromptsPath == "" {
		return prompts.Default()
	}
	return prompts.Load(cfg.PromptsPath)
}

func buildStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "memory", "":
		log.Info("using in-memory store")
		return store.NewMemory(), nil
	case "redis":
		st, err := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		log.Info("using Redis store", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
		return st, nil
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres store")
		return db, nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid options: memory, redis, postgres)", cfg.StoreProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, func() error, error) {
	switch cfg.QueueProvider {
	case "local", "":
		log.Info("using in-process queue")
		return queue.NewLocal(log, 0), func() error { return nil }, nil
	case "nats":
		if cfg.QueueURL == "" {
			return nil, nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc), func() error { nc.Close(); return nil }, nil
	case "amqp":
		if cfg.QueueURL == "" {
			return nil, nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=amqp")
		}
		conn, err := amqp.Dial(cfg.QueueURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		q, err := queue.NewAMQP(log, conn)
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		log.Info("using RabbitMQ queue")
		return q, conn.Close, nil
	default:
		return nil, nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid options: local, nats, amqp)", cfg.QueueProvider)
	}
}

func buildCache(cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "noop", "":
		return cache.NewNoOpCache(), nil
	case "redis":
		c, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Warn("redis cache unavailable, anonymizations will not be cached", "err", err)
			return cache.NewNoOpCache(), nil
		}
		log.Info("using Redis anonymization cache", "ttl", cfg.AnonymizeCacheTTL)
		return c, nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: noop, redis)", cfg.CacheProvider)
	}
}

func buildArchive(ctx context.Context, cfg config.Config, log *slog.Logger) (blob.Archive, error) {
	switch cfg.BlobProvider {
	case "none", "":
		return blob.Noop{}, nil
	case "s3":
		a, err := blob.NewS3(ctx, blob.S3Options{
			Bucket:    cfg.BlobBucket,
			Endpoint:  cfg.BlobEndpoint,
			Region:    cfg.BlobRegion,
			AccessKey: cfg.BlobAccessKey,
			SecretKey: cfg.BlobSecretKey,
		})
		if err != nil {
			return nil, err
		}
		log.Info("archiving uploads to S3", "bucket", cfg.BlobBucket)
		return a, nil
	default:
		return nil, fmt.Errorf("invalid BLOB_PROVIDER: %s (valid options: none, s3)", cfg.BlobProvider)
	}
}

// buildLLM never fails on a missing key: the service starts and every model
// call reports a credential failure.
func buildLLM(ctx context.Context, cfg config.Config, log *slog.Logger) (llm.Generator, error) {
	var (
		gen llm.Generator
		err error
	)
	switch cfg.LLMProvider {
	case "gemini":
		gen, err = llm.NewGeminiClient(ctx, cfg.GeminiKey)
	case "openai":
		gen, err = llm.NewOpenAIClient(cfg.OpenAIKey)
	case "anthropic":
		gen, err = llm.NewAnthropicClient(cfg.AnthropicKey)
	case "stub":
		log.Info("using stub LLM client")
		return llm.NewStub(), nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid options: gemini, openai, anthropic, stub)", cfg.LLMProvider)
	}
	if errors.Is(err, llm.ErrMissingCredential) {
		log.Warn("no API key configured; model calls will fail", "provider", cfg.LLMProvider)
		return llm.Unconfigured{Provider: cfg.LLMProvider}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s client: %w", cfg.LLMProvider, err)
	}
	extraction, conversation := cfg.Models()
	log.Info("using LLM client", "provider", cfg.LLMProvider, "extraction_model", extraction, "conversation_model", conversation)
	return gen, nil
}
