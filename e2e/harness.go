// Package e2e provides end-to-end testing infrastructure for stock-analyst.
// The harness runs the full HTTP stack against mock upstream servers and an
// in-process Redis.
package e2e

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stock-analyst/agents"
	"stock-analyst/config"
	"stock-analyst/e2e/mocks"
	"stock-analyst/internal/api"
	"stock-analyst/internal/app"
	"stock-analyst/repository"
	"stock-analyst/screener"
	"stock-analyst/services"
	"stock-analyst/snapshot"

	"github.com/alicebob/miniredis/v2"
)

// TestHarness provides the infrastructure for running E2E tests.
type TestHarness struct {
	t          *testing.T
	ctx        context.Context
	cancel     context.CancelFunc
	mockServer *mocks.MockServer
	redis      *miniredis.Miniredis
	cache      *repository.Cache
	app        *app.App
	router     http.Handler
	config     *config.Config
}

// NewTestHarness creates a new test harness.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	return &TestHarness{
		t:      t,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Setup initializes all test dependencies.
func (h *TestHarness) Setup() error {
	// Start mock server for external APIs
	h.mockServer = mocks.NewMockServer()
	h.redis = miniredis.RunT(h.t)
	h.config = h.createTestConfig()

	// Breaker state must not leak between harnesses
	services.SetGlobalRegistry(services.NewCircuitBreakerRegistry(services.DefaultCircuitBreakerConfig))

	h.cache = repository.NewCache(repository.RedisDialer("redis://" + h.redis.Addr()))

	yahoo := services.NewYahooService(h.config.MarketData.YahooBaseURL, h.config.UpstreamTimeout())
	alpha := services.NewAlphaVantageService(h.config.AlphaVantage.APIKey, h.config.AlphaVantage.BaseURL)
	gateway := services.NewMarketDataGateway(yahoo,
		services.WithMetadataProviders(yahoo, alpha),
		services.WithCallDelay(h.config.UpstreamCallDelay()),
	)
	snapshots := snapshot.NewService(h.cache, gateway, h.config.StockDataTTL())

	completer, err := services.NewOpenAIService(h.config)
	if err != nil {
		return err
	}
	usage := agents.NewUsageTracker(completer.Model())
	analyst := agents.NewAnalyst(completer, h.cache, usage, h.config.AnalysisTTL(),
		agents.WithTemperature(h.config.Analysis.Temperature),
	)
	comparer := screener.NewComparer(completer, usage, h.config.Analysis.ComparisonMaxTokens)

	h.app = app.New(h.config, h.cache, snapshots, analyst, comparer, usage)
	h.router = api.NewRouter(api.NewHandler(h.app, h.config), h.config)
	return nil
}

// Teardown cleans up all test resources.
func (h *TestHarness) Teardown() {
	if h.cancel != nil {
		h.cancel()
	}
	if h.cache != nil {
		h.cache.Close()
	}
	if h.mockServer != nil {
		h.mockServer.Close()
	}
}

// Context returns the test context.
func (h *TestHarness) Context() context.Context {
	return h.ctx
}

// MockServer returns the mock server for configuring responses.
func (h *TestHarness) MockServer() *mocks.MockServer {
	return h.mockServer
}

// Redis returns the in-process Redis server.
func (h *TestHarness) Redis() *miniredis.Miniredis {
	return h.redis
}

// App returns the application instance.
func (h *TestHarness) App() *app.App {
	return h.app
}

// Router returns the HTTP router for making requests.
func (h *TestHarness) Router() http.Handler {
	return h.router
}

// Config returns the test configuration.
func (h *TestHarness) Config() *config.Config {
	return h.config
}

// DoRequest performs an HTTP request and returns the response.
func (h *TestHarness) DoRequest(method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req = req.WithContext(h.ctx)

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *TestHarness) createTestConfig() *config.Config {
	mockURL := h.mockServer.URL()

	cfg := config.NewTestConfig()
	cfg.MarketData.YahooBaseURL = mockURL
	cfg.AlphaVantage.APIKey = "e2e-key"
	cfg.AlphaVantage.BaseURL = mockURL + "/query"
	cfg.OpenAI.APIKey = "e2e-key"
	cfg.OpenAI.BaseURL = mockURL + "/v1/"
	cfg.Redis.URL = "redis://" + h.redis.Addr()
	return cfg
}
