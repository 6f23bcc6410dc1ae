package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stock-analyst/agents"
	"stock-analyst/config"
	"stock-analyst/models"
	"stock-analyst/observability"
	"stock-analyst/repository"
	"stock-analyst/services"
)

// Version is reported by the service info and health endpoints
const Version = "1.0.0"

var (
	// ErrAIUnavailable means no AI provider is configured
	ErrAIUnavailable = errors.New("AI provider not configured")

	// ErrNoStocksFound means none of the requested symbols could be fetched
	ErrNoStocksFound = errors.New("no valid stocks found for the provided symbols")

	// ErrInsufficientValidStocks means fewer than two symbols of a comparison
	// could be fetched
	ErrInsufficientValidStocks = errors.New("at least 2 valid stocks are required for comparison")

	// ErrEmptyPortfolio means a portfolio request carried no holdings
	ErrEmptyPortfolio = errors.New("portfolio cannot be empty")
)

// SnapshotProvider defines the snapshot operations needed by App
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context, symbol string, market models.Market, period, interval string) (*models.StockSnapshot, error)
	GetBatch(ctx context.Context, symbols []string, period, interval string) ([]*models.StockSnapshot, error)
}

// Analyzer defines the analysis operations needed by App
type Analyzer interface {
	Cached(ctx context.Context, symbol string, market models.Market) (*models.AnalysisResult, bool)
	Analyze(ctx context.Context, symbol string, market models.Market, snap *models.StockSnapshot) (*models.AnalysisResult, error)
	ClearCache(ctx context.Context) (int64, bool)
	Health(ctx context.Context) agents.AnalystHealth
}

// ComparisonProvider defines the comparison operation needed by App
type ComparisonProvider interface {
	Compare(ctx context.Context, symbols []string, snapshots []*models.StockSnapshot) (*models.ComparisonResult, error)
}

// App holds application dependencies using interfaces for testability
type App struct {
	cfg         *config.Config
	cache       repository.Store
	snapshots   SnapshotProvider
	analyst     Analyzer
	comparer    ComparisonProvider
	usage       *agents.UsageTracker
	health      *agents.HealthCache
	analysisSem chan struct{}
	now         func() time.Time
}

// New creates a new App. analyst may be nil when no AI provider is configured.
func New(cfg *config.Config, cache repository.Store, snapshots SnapshotProvider, analyst Analyzer, comparer ComparisonProvider, usage *agents.UsageTracker) *App {
	limit := cfg.Analysis.ConcurrencyLimit
	if limit <= 0 {
		limit = 1
	}
	return &App{
		cfg:         cfg,
		cache:       cache,
		snapshots:   snapshots,
		analyst:     analyst,
		comparer:    comparer,
		usage:       usage,
		health:      agents.NewHealthCache(time.Duration(cfg.Analysis.HealthCacheTTLSeconds) * time.Second),
		analysisSem: make(chan struct{}, limit),
		now:         time.Now,
	}
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.cfg
}

// AIConfigured reports whether analyses can be generated
func (a *App) AIConfigured() bool {
	return a.analyst != nil
}

// GetStock returns the snapshot for symbol
func (a *App) GetStock(ctx context.Context, symbol string, market models.Market, period, interval string) (*models.StockSnapshot, error) {
	return a.snapshots.GetSnapshot(ctx, symbol, market, period, interval)
}

// GetBatch returns the snapshots of every symbol that could be fetched
func (a *App) GetBatch(ctx context.Context, symbols []string, period, interval string) ([]*models.StockSnapshot, error) {
	snaps, err := a.snapshots.GetBatch(ctx, symbols, period, interval)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoStocksFound, strings.Join(symbols, ", "))
	}
	return snaps, nil
}

// AnalyzeStock returns the analysis for symbol. A cached analysis is served
// without fetching market data; otherwise the analysis takes a slot of the
// concurrency limit and fails fast when none is free.
func (a *App) AnalyzeStock(ctx context.Context, symbol string, market models.Market) (*models.AnalysisResult, error) {
	if a.analyst == nil {
		return nil, ErrAIUnavailable
	}
	if cached, ok := a.analyst.Cached(ctx, symbol, market); ok {
		return cached, nil
	}

	select {
	case a.analysisSem <- struct{}{}:
		defer func() { <-a.analysisSem }()
	default:
		observability.GetMetrics().RecordAnalysisError(string(market), "queue_full")
		return nil, models.ErrQueueFull
	}

	snap, err := a.snapshots.GetSnapshot(ctx, symbol, market, a.cfg.MarketData.DefaultPeriod, a.cfg.MarketData.DefaultInterval)
	if err != nil {
		return nil, err
	}
	return a.analyst.Analyze(ctx, symbol, market, snap)
}

// Compare fetches every symbol, drops the ones that fail and ranks the rest
func (a *App) Compare(ctx context.Context, symbols []string) (*models.ComparisonResult, error) {
	if len(symbols) < 2 {
		return nil, fmt.Errorf("%w: got %d", models.ErrInsufficientSymbols, len(symbols))
	}

	valid := make([]string, 0, len(symbols))
	snaps := make([]*models.StockSnapshot, 0, len(symbols))
	for _, symbol := range symbols {
		market := models.DetermineMarket(symbol)
		snap, err := a.snapshots.GetSnapshot(ctx, symbol, market, a.cfg.MarketData.DefaultPeriod, a.cfg.MarketData.DefaultInterval)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			observability.WithOperation(symbol, string(market), "compare").Warn("dropping symbol from comparison", "error", err)
			continue
		}
		valid = append(valid, symbol)
		snaps = append(snaps, snap)
	}

	if len(snaps) < 2 {
		return nil, fmt.Errorf("%w: %d valid", ErrInsufficientValidStocks, len(snaps))
	}
	return a.comparer.Compare(ctx, valid, snaps)
}

// Search looks the query up in the symbol catalogue. market is a Market or
// "ALL".
func (a *App) Search(query, market string, limit int) []models.SearchResult {
	return SearchCatalogue(query, market, limit)
}

// MarketStatus reports the session state of every market
func (a *App) MarketStatus() (map[models.Market]models.MarketStatus, error) {
	now := a.now()
	out := make(map[models.Market]models.MarketStatus, len(models.DefaultSessions))
	for _, session := range models.DefaultSessions {
		status, err := session.Status(now)
		if err != nil {
			return nil, err
		}
		out[session.Market] = status
	}
	return out, nil
}

// TokenUsage returns the current usage session
func (a *App) TokenUsage() agents.UsageStats {
	return a.usage.Stats()
}

// ResetTokenUsage starts a new usage session and returns the previous one
func (a *App) ResetTokenUsage() agents.UsageStats {
	return a.usage.Reset()
}

// ClearAnalysisCache deletes every cached analysis
func (a *App) ClearAnalysisCache(ctx context.Context) (int64, error) {
	var (
		n  int64
		ok bool
	)
	if a.analyst != nil {
		n, ok = a.analyst.ClearCache(ctx)
	} else {
		n, ok = a.cache.DeletePrefix(ctx, models.AnalysisKeyPrefix)
	}
	if !ok {
		return 0, errors.New("cache backend unavailable")
	}
	return n, nil
}

// Health is the service level health report
type Health struct {
	Status          string                                   `json:"status"`
	Timestamp       time.Time                                `json:"timestamp"`
	Services        map[string]string                        `json:"services"`
	CircuitBreakers map[string]services.CircuitBreakerStatus `json:"circuit_breakers"`
	Version         string                                   `json:"version"`
}

// Health probes the cache and reports provider and breaker state
func (a *App) Health(ctx context.Context) Health {
	h := Health{
		Status:    "healthy",
		Timestamp: a.now().UTC(),
		Services: map[string]string{
			"api":   "operational",
			"cache": "operational",
			"ai":    "configured",
		},
		CircuitBreakers: services.GetGlobalRegistry().Status(),
		Version:         Version,
	}

	if available, _ := a.health.Check(ctx, a.cache.Ping); !available {
		h.Services["cache"] = "unavailable"
		h.Status = "degraded"
	}
	if a.analyst == nil {
		h.Services["ai"] = "not_configured"
	}
	if open := services.GetGlobalRegistry().OpenBreakers(); len(open) > 0 {
		h.Status = "degraded"
	}
	return h
}

// AnalysisHealth is the analysis service health report
type AnalysisHealth struct {
	Status            string    `json:"status"`
	Service           string    `json:"service"`
	AIConfigured      bool      `json:"ai_configured"`
	Provider          string    `json:"provider,omitempty"`
	Model             string    `json:"model,omitempty"`
	CacheAvailable    bool      `json:"cache_available"`
	CacheStatusCached bool      `json:"cache_status_cached"`
	Timestamp         time.Time `json:"timestamp"`
}

// AnalysisHealth reports whether analyses can currently be produced
func (a *App) AnalysisHealth(ctx context.Context) AnalysisHealth {
	out := AnalysisHealth{
		Status:    "healthy",
		Service:   "analysis",
		Timestamp: a.now().UTC(),
	}
	if a.analyst == nil {
		available, cached := a.health.Check(ctx, a.cache.Ping)
		out.CacheAvailable, out.CacheStatusCached = available, cached
		out.Status = "degraded"
		return out
	}

	h := a.analyst.Health(ctx)
	out.AIConfigured = true
	out.Provider, out.Model = h.Provider, h.Model
	out.CacheAvailable, out.CacheStatusCached = h.CacheAvailable, h.CacheChecked
	if !h.CacheAvailable {
		out.Status = "degraded"
	}
	return out
}

// AnalysisSemCapacity returns the capacity of the analysis semaphore (for testing)
func (a *App) AnalysisSemCapacity() int {
	return cap(a.analysisSem)
}
