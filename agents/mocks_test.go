package agents

import (
	"context"
	"sync"
	"time"

	"stock-analyst/models"
	"stock-analyst/repository"
	"stock-analyst/services"
)

type mockCompleter struct {
	mu       sync.Mutex
	calls    int
	requests []services.CompletionRequest
	response *services.Completion
	err      error
}

func (m *mockCompleter) Complete(ctx context.Context, req services.CompletionRequest) (*services.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockCompleter) Model() string    { return "gpt-4o-mini" }
func (m *mockCompleter) Provider() string { return "openai" }

func (m *mockCompleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

const validAnalysisJSON = `{
	"recommendation": "BUY",
	"confidence_score": 0.8,
	"target_price": 140,
	"analysis_summary": "Strong upward momentum with RSI at extreme levels.",
	"key_points": [
		{"category": "technical", "point": "Price above 20-day SMA", "sentiment": "positive"},
		{"category": "risk", "point": "RSI signals overbought conditions", "sentiment": "neutral"},
		{"category": "fundamental", "point": "Solid earnings growth", "sentiment": "positive"},
		{"category": "market", "point": "Sector rotation headwinds", "sentiment": "negative"}
	],
	"price_targets": {"bearish": 115, "neutral": 130, "bullish": 150}
}`

func completionWith(content string) *services.Completion {
	return &services.Completion{
		Content:          content,
		Model:            "gpt-4o-mini",
		PromptTokens:     1000,
		CompletionTokens: 500,
	}
}

func risingSnapshot(symbol string, market models.Market, n int) *models.StockSnapshot {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	history := make([]models.PricePoint, n)
	for i := range history {
		c := 100 + float64(i)
		history[i] = models.PricePoint{Timestamp: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1_000_000}
	}
	rsi, sma20 := 100.0, 119.5
	return &models.StockSnapshot{
		Symbol:        symbol,
		Market:        market,
		CompanyName:   "Apple Inc.",
		CurrentPrice:  history[n-1].Close,
		Currency:      market.Currency(),
		ChangePercent: 0.78,
		Volume:        1_000_000,
		PriceChanges:  map[string]float64{"5d": 3.98, "1m": 20.56},
		History:       history,
		Indicators:    models.TechnicalIndicators{RSI: &rsi, SMA20: &sma20},
	}
}

func newMemoryStore() (*repository.Cache, *repository.MemoryBackend) {
	backend := repository.NewMemoryBackend()
	return repository.NewCacheWithBackend(backend), backend
}
