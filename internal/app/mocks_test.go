package app

import (
	"context"
	"time"

	"stock-analyst/agents"
	"stock-analyst/config"
	"stock-analyst/models"
	"stock-analyst/repository"
)

type mockSnapshots struct {
	GetSnapshotFunc func(ctx context.Context, symbol string, market models.Market, period, interval string) (*models.StockSnapshot, error)
	GetBatchFunc    func(ctx context.Context, symbols []string, period, interval string) ([]*models.StockSnapshot, error)
	calls           int
}

func (m *mockSnapshots) GetSnapshot(ctx context.Context, symbol string, market models.Market, period, interval string) (*models.StockSnapshot, error) {
	m.calls++
	if m.GetSnapshotFunc != nil {
		return m.GetSnapshotFunc(ctx, symbol, market, period, interval)
	}
	return &models.StockSnapshot{Symbol: symbol, Market: market, CurrentPrice: 100}, nil
}

func (m *mockSnapshots) GetBatch(ctx context.Context, symbols []string, period, interval string) ([]*models.StockSnapshot, error) {
	if m.GetBatchFunc != nil {
		return m.GetBatchFunc(ctx, symbols, period, interval)
	}
	return nil, nil
}

type mockAnalyzer struct {
	CachedFunc  func(ctx context.Context, symbol string, market models.Market) (*models.AnalysisResult, bool)
	AnalyzeFunc func(ctx context.Context, symbol string, market models.Market, snap *models.StockSnapshot) (*models.AnalysisResult, error)
	cleared     int64
}

func (m *mockAnalyzer) Cached(ctx context.Context, symbol string, market models.Market) (*models.AnalysisResult, bool) {
	if m.CachedFunc != nil {
		return m.CachedFunc(ctx, symbol, market)
	}
	return nil, false
}

func (m *mockAnalyzer) Analyze(ctx context.Context, symbol string, market models.Market, snap *models.StockSnapshot) (*models.AnalysisResult, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, symbol, market, snap)
	}
	return &models.AnalysisResult{Symbol: symbol, Market: market, Recommendation: models.RecommendationHold}, nil
}

func (m *mockAnalyzer) ClearCache(ctx context.Context) (int64, bool) {
	return m.cleared, true
}

func (m *mockAnalyzer) Health(ctx context.Context) agents.AnalystHealth {
	return agents.AnalystHealth{Provider: "openai", Model: "gpt-4o-mini", CacheAvailable: true}
}

type mockComparer struct {
	CompareFunc func(ctx context.Context, symbols []string, snapshots []*models.StockSnapshot) (*models.ComparisonResult, error)
}

func (m *mockComparer) Compare(ctx context.Context, symbols []string, snapshots []*models.StockSnapshot) (*models.ComparisonResult, error) {
	if m.CompareFunc != nil {
		return m.CompareFunc(ctx, symbols, snapshots)
	}
	return &models.ComparisonResult{Symbols: symbols, Winner: symbols[0]}, nil
}

// testConfig returns a test configuration
func testConfig() *config.Config {
	return config.NewTestConfig()
}

// testApp creates an App over an in-memory cache
func testApp(snaps *mockSnapshots, analyst Analyzer) *App {
	cache := repository.NewCacheWithBackend(repository.NewMemoryBackend())
	a := New(testConfig(), cache, snaps, analyst, &mockComparer{}, agents.NewUsageTracker("gpt-4o-mini"))
	a.now = func() time.Time { return time.Date(2024, 1, 15, 15, 30, 0, 0, time.UTC) }
	return a
}
