package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/signalhaus/signalhaus/internal/cache"
	"github.com/signalhaus/signalhaus/internal/config"
	"github.com/signalhaus/signalhaus/internal/connector"
	"github.com/signalhaus/signalhaus/internal/deal"
	"github.com/signalhaus/signalhaus/internal/embedding"
	"github.com/signalhaus/signalhaus/internal/ingest"
	"github.com/signalhaus/signalhaus/internal/llm"
	"github.com/signalhaus/signalhaus/internal/rag"
	"github.com/signalhaus/signalhaus/internal/ratelimit"
	"github.com/signalhaus/signalhaus/internal/search"
	"github.com/signalhaus/signalhaus/internal/server"
	"github.com/signalhaus/signalhaus/internal/storage"
	"github.com/signalhaus/signalhaus/internal/telemetry"
	"github.com/signalhaus/signalhaus/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("SIGNALHAUS_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("signalhaus starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Connect to the graph store.
	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	// Run migrations from the embedded schema files. RunMigrations tracks
	// applied files in schema_migrations and skips duplicates, so errors here
	// indicate real failures (not "already exists").
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// Connect to qdrant and ensure both signal collections exist.
	index, err := search.NewQdrantIndex(ctx, search.QdrantConfig{
		URL:  cfg.QdrantURL,
		Dims: cfg.EmbeddingDimensions,
	}, logger)
	if err != nil {
		return fmt.Errorf("qdrant: %w", err)
	}
	defer func() { _ = index.Close() }()

	embedder := newEmbeddingProvider(cfg, logger)

	// Redis backs the query cache and the HTTP rate limiter. Both degrade
	// gracefully when REDIS_URL is unset: a nil cache disables caching, a nil
	// limiter disables rate limiting.
	var (
		queryCache *cache.Cache
		limiter    *ratelimit.Limiter
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		queryCache = cache.New(rdb, cfg.CacheTTL, logger)
		limiter = ratelimit.New(rdb, logger)
		logger.Info("redis: enabled", "cache_ttl", cfg.CacheTTL)
	} else {
		logger.Info("redis: disabled (no REDIS_URL), caching and rate limiting off")
	}

	connectors := buildConnectors(cfg, logger)
	if len(connectors) == 0 {
		logger.Warn("no connector API keys configured, ingest will only accept imports")
	}

	// The chat analyzer is optional; without a key the ingest pipeline falls
	// back to the deterministic rule-based narrative.
	var analyzer llm.Analyzer
	if cfg.ChatAPIKey != "" {
		analyzer = llm.NewChatAnalyzer(llm.ChatConfig{
			BaseURL: cfg.ChatBaseURL,
			APIKey:  cfg.ChatAPIKey,
			Model:   cfg.ChatModel,
		})
		logger.Info("narrative analyzer: chat", "model", cfg.ChatModel)
	} else {
		logger.Info("narrative analyzer: rule-based (no chat API key)")
	}

	loop := rag.New(embedder, index, logger)
	searchSvc := search.NewService(embedder, index, db, logger)
	dealSvc := deal.NewService(db, logger)
	ingestSvc := ingest.New(connectors, db, index, embedder, loop, analyzer, queryCache, logger)

	srv := server.New(server.Config{
		Store:               db,
		Ingest:              ingestSvc,
		Search:              searchSvc,
		Deals:               dealSvc,
		Logger:              logger,
		Limiter:             limiter,
		Cache:               queryCache,
		Index:               index,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		RateLimitPerMinute:  cfg.RateLimitPerMinute,
		AllowClear:          cfg.AllowClear,
	})

	// Probe connectors at startup so misconfigured keys surface in the log
	// rather than as 502s on the first ingest.
	for name, err := range ingestSvc.TestConnections(ctx) {
		if err != nil {
			logger.Warn("connector check failed", "connector", name, "error", err)
		} else {
			logger.Info("connector ready", "connector", name)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("signalhaus shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("signalhaus stopped")
	return nil
}

// buildConnectors instantiates every connector with a configured API key.
// Each gets its own request budget so one chatty source cannot starve the
// others.
func buildConnectors(cfg config.Config, logger *slog.Logger) []connector.Connector {
	budget := func() *ratelimit.Budget {
		return ratelimit.NewBudget(cfg.ConnectorRateLimit, cfg.ConnectorRateWin)
	}

	var conns []connector.Connector
	if cfg.ApolloAPIKey != "" {
		conns = append(conns, connector.NewApollo(cfg.ApolloAPIKey, "", budget(), logger))
	}
	if cfg.KVKAPIKey != "" {
		conns = append(conns, connector.NewKVK(cfg.KVKAPIKey, "", budget(), logger))
	}
	if cfg.GooglePlacesAPIKey != "" {
		conns = append(conns, connector.NewGooglePlaces(cfg.GooglePlacesAPIKey, "", budget(), logger))
	}
	if cfg.HunterAPIKey != "" {
		conns = append(conns, connector.NewHunter(cfg.HunterAPIKey, "", budget(), logger))
	}
	for _, c := range conns {
		logger.Info("connector configured", "connector", c.Name())
	}
	return conns
}

// newEmbeddingProvider creates an embedding provider based on configuration.
// Provider selection: "ollama", "openai", "hashing", or "auto" (default).
// Auto mode tries Ollama if reachable, then OpenAI if key present, else the
// deterministic hashing provider. Ollama is preferred: embeddings stay
// on-premises with no external API costs.
func newEmbeddingProvider(cfg config.Config, logger *slog.Logger) embedding.Provider {
	dims := cfg.EmbeddingDimensions

	switch cfg.EmbeddingProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Error("OPENAI_API_KEY required when SIGNALHAUS_EMBEDDING_PROVIDER=openai")
			return embedding.NewHashingProvider(dims)
		}
		logger.Info("embedding provider: openai", "model", cfg.EmbeddingModel, "dimensions", dims)
		return embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbeddingModel)

	case "ollama":
		logger.Info("embedding provider: ollama", "url", cfg.OllamaURL, "model", cfg.OllamaModel, "dimensions", dims)
		return embedding.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, dims)

	case "hashing":
		logger.Info("embedding provider: hashing (deterministic, no model)")
		return embedding.NewHashingProvider(dims)

	case "auto":
		fallthrough
	default:
		if ollamaReachable(cfg.OllamaURL) {
			logger.Info("embedding provider: ollama (auto-detected)", "url", cfg.OllamaURL, "model", cfg.OllamaModel, "dimensions", dims)
			return embedding.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, dims)
		}
		if cfg.OpenAIAPIKey != "" {
			logger.Info("embedding provider: openai (auto-detected)", "model", cfg.EmbeddingModel, "dimensions", dims)
			return embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
		}
		logger.Warn("no embedding model available, using hashing provider")
		return embedding.NewHashingProvider(dims)
	}
}

// ollamaReachable checks if an Ollama server is responding.
func ollamaReachable(baseURL string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
