package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"stock-analyst/agents"
	"stock-analyst/config"
	"stock-analyst/internal/app"
	"stock-analyst/models"
	"stock-analyst/repository"
	"stock-analyst/screener"
	"stock-analyst/services"
	"stock-analyst/snapshot"
)

func init() {
	services.SetGlobalRegistry(services.NewCircuitBreakerRegistry(services.DefaultCircuitBreakerConfig))
}

// mockFetcher implements services.MarketDataFetcher for testing
type mockFetcher struct {
	mu        sync.Mutex
	FetchFunc func(ctx context.Context, symbol string, market models.Market, period, interval string) (*models.RawMarketData, error)
	calls     int
}

func (m *mockFetcher) Fetch(ctx context.Context, symbol string, market models.Market, period, interval string) (*models.RawMarketData, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, symbol, market, period, interval)
	}
	if strings.HasPrefix(models.NormalizeSymbol(symbol), "ZZ") {
		return nil, models.ErrNotFound
	}
	return risingRaw(models.FormatSymbol(symbol, market), market, 30), nil
}

// mockCompleter implements services.Completer for testing
type mockCompleter struct {
	mu           sync.Mutex
	CompleteFunc func(ctx context.Context, req services.CompletionRequest) (*services.Completion, error)
	calls        int
}

func (m *mockCompleter) Complete(ctx context.Context, req services.CompletionRequest) (*services.Completion, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	content := "Both are solid; the first looks stronger."
	if req.Schema != nil {
		content = validAnalysis
	}
	return &services.Completion{Content: content, Model: "gpt-4o-mini", PromptTokens: 1000, CompletionTokens: 500}, nil
}

func (m *mockCompleter) Model() string    { return "gpt-4o-mini" }
func (m *mockCompleter) Provider() string { return "openai" }

const validAnalysis = `{
	"recommendation": "HOLD",
	"confidence_score": 0.7,
	"target_price": 135,
	"analysis_summary": "Momentum is strong but the RSI is stretched.",
	"key_points": [
		{"category": "risk", "point": "Overbought RSI", "sentiment": "negative"},
		{"category": "market", "point": "Sector tailwinds", "sentiment": "positive"}
	],
	"price_targets": {"bearish": 110, "neutral": 130, "bullish": 150}
}`

func risingRaw(ticker string, market models.Market, n int) *models.RawMarketData {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	history := make([]models.PricePoint, n)
	for i := range history {
		c := 100 + float64(i)
		history[i] = models.PricePoint{Timestamp: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	name := "Apple Inc."
	return &models.RawMarketData{
		Ticker:   ticker,
		Market:   market,
		Currency: market.Currency(),
		History:  history,
		Metadata: models.Metadata{CompanyName: &name},
	}
}

type testEnv struct {
	router    http.Handler
	fetcher   *mockFetcher
	completer *mockCompleter
	backend   *repository.MemoryBackend
	cfg       *config.Config
}

// newTestEnv wires the real pipeline over stub upstreams
func newTestEnv(withAI bool) *testEnv {
	cfg := config.NewTestConfig()
	backend := repository.NewMemoryBackend()
	cache := repository.NewCacheWithBackend(backend)
	fetcher := &mockFetcher{}
	completer := &mockCompleter{}
	usage := agents.NewUsageTracker(cfg.OpenAI.Model)

	snaps := snapshot.NewService(cache, fetcher, cfg.StockDataTTL())
	var analyst app.Analyzer
	var comparerAI agents.Completer
	if withAI {
		analyst = agents.NewAnalyst(completer, cache, usage, cfg.AnalysisTTL())
		comparerAI = completer
	}
	comparer := screener.NewComparer(comparerAI, usage, cfg.Analysis.ComparisonMaxTokens)

	a := app.New(cfg, cache, snaps, analyst, comparer, usage)
	return &testEnv{
		router:    NewRouter(NewHandler(a, cfg), cfg),
		fetcher:   fetcher,
		completer: completer,
		backend:   backend,
		cfg:       cfg,
	}
}
