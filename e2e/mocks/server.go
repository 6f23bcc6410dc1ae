// Package mocks provides HTTP mock servers for external APIs used in E2E tests.
package mocks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// DefaultAnalysis is the structured analysis returned for schema requests.
const DefaultAnalysis = `{
	"recommendation": "BUY",
	"confidence_score": 0.82,
	"target_price": 145,
	"analysis_summary": "Sustained uptrend with healthy volume.",
	"key_points": [
		{"category": "technical", "point": "Price above 20-day SMA", "sentiment": "positive"},
		{"category": "risk", "point": "RSI near overbought", "sentiment": "negative"},
		{"category": "fundamental", "point": "Reasonable valuation", "sentiment": "positive"}
	],
	"price_targets": {"bearish": 120, "neutral": 135, "bullish": 155}
}`

// DefaultNarrative is the free text returned for comparison requests.
const DefaultNarrative = "AAPL leads on momentum while MSFT trades at a richer multiple."

// MockServer provides configurable mock responses for the market data and
// completion APIs.
type MockServer struct {
	mu     sync.RWMutex
	server *httptest.Server

	bars      map[string][]Bar
	summaries map[string]QuoteSummary
	overviews map[string]Overview
	analysis  string
	narrative string

	// Error injection, as HTTP status codes
	chartStatus int
	chatStatus  int

	requestLog []RequestLog
}

// RequestLog records incoming requests for test assertions.
type RequestLog struct {
	Method string
	Path   string
	Body   string
}

// NewMockServer creates a new mock server with default responses.
func NewMockServer() *MockServer {
	m := &MockServer{
		bars:       make(map[string][]Bar),
		summaries:  make(map[string]QuoteSummary),
		overviews:  make(map[string]Overview),
		requestLog: make([]RequestLog, 0),
	}
	m.setDefaults()
	m.server = httptest.NewServer(m)
	return m
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	m.server.Close()
}

// ServeHTTP implements http.Handler to route requests to appropriate mock handlers.
func (m *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	m.mu.Lock()
	m.requestLog = append(m.requestLog, RequestLog{
		Method: r.Method,
		Path:   r.URL.Path,
		Body:   string(body),
	})
	m.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/v8/finance/chart/"):
		m.handleChart(w, strings.TrimPrefix(path, "/v8/finance/chart/"))
	case strings.HasPrefix(path, "/v10/finance/quoteSummary/"):
		m.handleQuoteSummary(w, strings.TrimPrefix(path, "/v10/finance/quoteSummary/"))
	case path == "/query" && r.URL.Query().Get("function") == "OVERVIEW":
		m.handleOverview(w, r.URL.Query().Get("symbol"))
	case strings.HasSuffix(path, "/chat/completions"):
		m.handleChat(w, body)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// GetRequestLog returns all logged requests for assertions.
func (m *MockServer) GetRequestLog() []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RequestLog{}, m.requestLog...)
}

// CountRequests returns how many logged requests had a path containing fragment.
func (m *MockServer) CountRequests(fragment string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.requestLog {
		if strings.Contains(r.Path, fragment) {
			n++
		}
	}
	return n
}

// ClearRequestLog clears the request log.
func (m *MockServer) ClearRequestLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLog = make([]RequestLog, 0)
}

// SetBars configures the chart response for a ticker.
func (m *MockServer) SetBars(ticker string, bars []Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[ticker] = bars
}

// SetQuoteSummary configures the quote summary for a ticker.
func (m *MockServer) SetQuoteSummary(ticker string, s QuoteSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[ticker] = s
}

// SetOverview configures the Alpha Vantage overview for a ticker.
func (m *MockServer) SetOverview(ticker string, o Overview) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overviews[ticker] = o
}

// SetAnalysis configures the structured analysis content.
func (m *MockServer) SetAnalysis(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analysis = content
}

// SetChartStatus makes the chart endpoint fail with status. Zero restores it.
func (m *MockServer) SetChartStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chartStatus = status
}

// SetChatStatus makes the completion endpoint fail with status. Zero restores it.
func (m *MockServer) SetChatStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatStatus = status
}

func (m *MockServer) setDefaults() {
	m.bars["AAPL"] = GenerateBars(60, 150, 0.5)
	m.bars["MSFT"] = GenerateBars(60, 400, 0.2)
	m.bars["BTC-USD"] = GenerateBars(60, 40000, 150)
	m.bars["NPN.JO"] = GenerateBars(60, 3000, -5)

	m.summaries["AAPL"] = QuoteSummary{LongName: "Apple Inc.", MarketCap: 2.9e12, TrailingPE: 22.5, DividendYield: 0.005, AverageVolume: 55_000_000}
	m.summaries["MSFT"] = QuoteSummary{LongName: "Microsoft Corporation", MarketCap: 3.1e12, TrailingPE: 35.1, AverageVolume: 22_000_000}
	m.summaries["BTC-USD"] = QuoteSummary{LongName: "Bitcoin USD"}

	m.overviews["MSFT"] = Overview{
		Symbol:        "MSFT",
		Name:          "Microsoft Corporation",
		Exchange:      "NASDAQ",
		Currency:      "USD",
		MarketCap:     "3100000000000",
		PERatio:       "35.1",
		DividendYield: "0.0072",
		Week52High:    "468.35",
		Week52Low:     "362.90",
	}

	m.analysis = DefaultAnalysis
	m.narrative = DefaultNarrative
}

// GenerateBars builds n daily bars starting at start and moving step a day.
func GenerateBars(n int, start, step float64) []Bar {
	begin := time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)
	bars := make([]Bar, n)
	for i := range bars {
		c := start + step*float64(i)
		bars[i] = Bar{
			Timestamp: begin.AddDate(0, 0, i).Unix(),
			Open:      c - step/2,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1_000_000 + int64(i)*1000,
		}
	}
	return bars
}

func (m *MockServer) handleChart(w http.ResponseWriter, ticker string) {
	m.mu.RLock()
	status := m.chartStatus
	bars, ok := m.bars[ticker]
	summary := m.summaries[ticker]
	m.mu.RUnlock()

	if status != 0 {
		http.Error(w, "upstream failure", status)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, chartResponse{Chart: chartBody{
			Error: &apiError{Code: "Not Found", Description: "No data found, symbol may be delisted"},
		}})
		return
	}

	q := chartQuote{}
	ts := make([]int64, len(bars))
	for i, b := range bars {
		ts[i] = b.Timestamp
		q.Open = append(q.Open, b.Open)
		q.High = append(q.High, b.High)
		q.Low = append(q.Low, b.Low)
		q.Close = append(q.Close, b.Close)
		q.Volume = append(q.Volume, b.Volume)
	}
	currency := "USD"
	if strings.HasSuffix(ticker, ".JO") {
		currency = "ZAR"
	}
	writeJSON(w, http.StatusOK, chartResponse{Chart: chartBody{Result: []chartResult{{
		Meta:       chartMeta{Symbol: ticker, Currency: currency, LongName: summary.LongName},
		Timestamp:  ts,
		Indicators: chartIndicators{Quote: []chartQuote{q}},
	}}}})
}

func (m *MockServer) handleQuoteSummary(w http.ResponseWriter, ticker string) {
	m.mu.RLock()
	s, ok := m.summaries[ticker]
	m.mu.RUnlock()

	var resp quoteSummaryResponse
	if !ok {
		resp.QuoteSummary.Error = &apiError{Code: "Not Found", Description: "Quote not found"}
		writeJSON(w, http.StatusNotFound, resp)
		return
	}
	var res quoteSummaryResult
	res.Price.LongName = s.LongName
	res.Price.MarketCap = raw(s.MarketCap)
	res.SummaryDetail.TrailingPE = raw(s.TrailingPE)
	res.SummaryDetail.DividendYield = raw(s.DividendYield)
	res.SummaryDetail.AverageVolume = raw(s.AverageVolume)
	resp.QuoteSummary.Result = []quoteSummaryResult{res}
	writeJSON(w, http.StatusOK, resp)
}

func (m *MockServer) handleOverview(w http.ResponseWriter, symbol string) {
	m.mu.RLock()
	o, ok := m.overviews[symbol]
	m.mu.RUnlock()

	if !ok {
		// Alpha Vantage answers unknown symbols with an empty object
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (m *MockServer) handleChat(w http.ResponseWriter, body []byte) {
	m.mu.RLock()
	status := m.chatStatus
	analysis, narrative := m.analysis, m.narrative
	m.mu.RUnlock()

	if status != 0 {
		writeJSON(w, status, map[string]any{"error": map[string]string{"message": "provider failure", "type": "server_error"}})
		return
	}

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"message": "invalid body"}})
		return
	}

	content := narrative
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_schema" {
		content = analysis
	}
	writeJSON(w, http.StatusOK, chatResponse{
		ID:      "chatcmpl-e2e",
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: chatUsage{PromptTokens: 1200, CompletionTokens: 300, TotalTokens: 1500},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
