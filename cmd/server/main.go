// Package main runs the stock analysis HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-analyst/agents"
	"stock-analyst/config"
	"stock-analyst/internal/api"
	"stock-analyst/internal/app"
	"stock-analyst/observability"
	"stock-analyst/repository"
	"stock-analyst/screener"
	"stock-analyst/services"
	"stock-analyst/snapshot"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	observability.InitLoggerWithLevel(cfg.IsProduction(), observability.ParseLevel(cfg.LogLevel))
	observability.InitMetrics()

	if err := cfg.Validate(); err != nil {
		observability.Fatal("invalid configuration", "error", err)
	}

	ctx := context.Background()

	cache := newCache(cfg)
	defer cache.Close()

	// Market data: Yahoo for bars and metadata, Alpha Vantage filling gaps
	yahoo := services.NewYahooService(cfg.MarketData.YahooBaseURL, cfg.UpstreamTimeout())
	providers := []services.MetadataProvider{yahoo}
	if cfg.HasAlphaVantage() {
		providers = append(providers, services.NewAlphaVantageService(cfg.AlphaVantage.APIKey, cfg.AlphaVantage.BaseURL))
	} else {
		observability.Warn("Alpha Vantage API key not set, metadata limited to Yahoo")
	}
	gateway := services.NewMarketDataGateway(yahoo,
		services.WithMetadataProviders(providers...),
		services.WithCallDelay(cfg.UpstreamCallDelay()),
	)
	snapshots := snapshot.NewService(cache, gateway, cfg.StockDataTTL())

	completer := newCompleter(ctx, cfg)
	model := ""
	if completer != nil {
		model = completer.Model()
	}
	usage := agents.NewUsageTracker(model)

	var analyst app.Analyzer
	if completer != nil {
		analyst = agents.NewAnalyst(completer, cache, usage, cfg.AnalysisTTL(),
			agents.WithTemperature(cfg.Analysis.Temperature),
			agents.WithMaxTokens(cfg.OpenAI.MaxTokens),
			agents.WithHealthCache(agents.NewHealthCache(time.Duration(cfg.Analysis.HealthCacheTTLSeconds)*time.Second)),
		)
		observability.Info("AI analysis enabled", "provider", completer.Provider(), "model", completer.Model())
	} else {
		observability.Warn("AI provider not configured, analysis endpoints disabled", "provider", cfg.AI.Provider)
	}
	comparer := screener.NewComparer(completer, usage, cfg.Analysis.ComparisonMaxTokens)

	application := app.New(cfg, cache, snapshots, analyst, comparer, usage)
	handler := api.NewHandler(application, cfg)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.RequestTimeoutSeconds+10) * time.Second,
	}

	go func() {
		observability.Info("starting server", "addr", cfg.HTTP.Addr, "version", app.Version, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observability.Fatal("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("server forced to shutdown", "error", err)
	}
	observability.Info("server stopped")
}

// newCache picks Redis, then Postgres, then an in-process store. Remote
// backends connect lazily so the service starts while they are down.
func newCache(cfg *config.Config) *repository.Cache {
	switch {
	case cfg.HasRedis():
		observability.Info("using redis cache")
		return repository.NewCache(repository.RedisDialer(cfg.Redis.URL))
	case cfg.HasDatabase():
		observability.Info("using postgres cache")
		return repository.NewCache(repository.PostgresDialer(cfg.Database.URL))
	default:
		observability.Warn("no cache backend configured, using in-memory cache")
		return repository.NewCacheWithBackend(repository.NewMemoryBackend())
	}
}

// newCompleter builds the configured provider, or nil when it has no
// credentials or fails to initialize
func newCompleter(ctx context.Context, cfg *config.Config) services.Completer {
	if !cfg.HasAIProvider() {
		return nil
	}

	var (
		c   services.Completer
		err error
	)
	switch cfg.AI.Provider {
	case config.ProviderOpenAI:
		c, err = services.NewOpenAIService(cfg)
	case config.ProviderBedrock:
		c, err = services.NewBedrockService(ctx, cfg.AWS.Region, cfg.AWS.BedrockModelID, cfg.AWS.AnthropicVersion, cfg.OpenAI.MaxTokens)
	case config.ProviderAnthropic:
		c, err = services.NewAnthropicService(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.OpenAI.MaxTokens)
	case config.ProviderGemini:
		c, err = services.NewGeminiService(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.OpenAI.MaxTokens)
	}
	if err != nil {
		observability.Error("failed to initialize AI provider", "provider", cfg.AI.Provider, "error", err)
		return nil
	}
	return c
}
