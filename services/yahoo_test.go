package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stock-analyst/models"
)

const chartFixture = `{
	"chart": {
		"result": [{
			"meta": {"symbol": "AAPL", "currency": "USD", "longName": "Apple Inc.", "fiftyTwoWeekHigh": 199.62, "fiftyTwoWeekLow": 164.08},
			"timestamp": [1704205800, 1704292200, 1704378600],
			"indicators": {"quote": [{
				"open":   [187.15, null, 182.15],
				"high":   [188.44, 185.0, null],
				"low":    [183.89, 182.0, 180.88],
				"close":  [185.64, null, 181.91],
				"volume": [82488700, 58414500, null]
			}]}
		}],
		"error": null
	}
}`

const quoteSummaryFixture = `{
	"quoteSummary": {
		"result": [{
			"price": {"longName": "Apple Inc.", "marketCap": {"raw": 2.9e12, "fmt": "2.9T"}},
			"summaryDetail": {
				"trailingPE": {},
				"forwardPE": {"raw": 28.1},
				"dividendYield": {"raw": 0.0051},
				"fiftyTwoWeekHigh": {"raw": 199.62},
				"fiftyTwoWeekLow": {"raw": 164.08},
				"averageVolume10days": {"raw": 51234567}
			},
			"defaultKeyStatistics": {}
		}],
		"error": null
	}
}`

func TestYahooGetChart_Success(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/AAPL" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("range") != "1mo" || q.Get("interval") != "1d" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		w.Write([]byte(chartFixture))
	}))
	defer server.Close()

	data, err := NewYahooService(server.URL, 5*time.Second).GetChart(context.Background(), "AAPL", "1mo", "1d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(data.History) != 2 {
		t.Fatalf("history length = %d, want 2 (null close skipped)", len(data.History))
	}
	last := data.History[1]
	if last.Close != 181.91 || last.High != 181.91 || last.Volume != 0 {
		t.Errorf("last bar = %+v, want missing high and volume filled", last)
	}
	if !data.History[0].Timestamp.Before(last.Timestamp) {
		t.Error("history should be ascending")
	}
	if data.Metadata.CompanyName == nil || *data.Metadata.CompanyName != "Apple Inc." {
		t.Errorf("company name = %v", data.Metadata.CompanyName)
	}
	if data.Metadata.FiftyTwoWeekHigh == nil || *data.Metadata.FiftyTwoWeekHigh != 199.62 {
		t.Errorf("52w high = %v", data.Metadata.FiftyTwoWeekHigh)
	}
}

func TestYahooGetChart_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		notFound    bool
		unavailable bool
	}{
		{"chart error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`, true, false},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`, true, false},
		{"all closes null", http.StatusOK, `{"chart":{"result":[{"timestamp":[1],"indicators":{"quote":[{"close":[null]}]}}]}}`, true, false},
		{"404", http.StatusNotFound, `{}`, true, false},
		{"401 crumb rejected", http.StatusUnauthorized, `{}`, false, true},
		{"403 blocked", http.StatusForbidden, `{}`, false, true},
		{"429", http.StatusTooManyRequests, ``, false, true},
		{"503", http.StatusServiceUnavailable, ``, false, true},
		{"garbage", http.StatusOK, `<html>`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewYahooService(server.URL, 5*time.Second).GetChart(context.Background(), "ZZZZ", "1mo", "1d")
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, models.ErrNotFound) != tt.notFound {
				t.Errorf("ErrNotFound mismatch: %v", err)
			}
			if errors.Is(err, models.ErrUpstreamUnavailable) != tt.unavailable {
				t.Errorf("ErrUpstreamUnavailable mismatch: %v", err)
			}
		})
	}
}

func TestYahooGetChart_ConnectionRefused(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewYahooService(url, time.Second).GetChart(context.Background(), "AAPL", "1mo", "1d")
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestYahooGetMetadata(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v10/finance/quoteSummary/NPN.JO") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if !strings.Contains(r.URL.Query().Get("modules"), "summaryDetail") {
			t.Errorf("unexpected modules: %s", r.URL.RawQuery)
		}
		w.Write([]byte(quoteSummaryFixture))
	}))
	defer server.Close()

	md, err := NewYahooService(server.URL, 5*time.Second).GetMetadata(context.Background(), "NPN.JO", models.MarketZA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.MarketCap == nil || *md.MarketCap != 2.9e12 {
		t.Errorf("market cap = %v", md.MarketCap)
	}
	if md.PERatio == nil || *md.PERatio != 28.1 {
		t.Errorf("PE should fall back to forward PE, got %v", md.PERatio)
	}
	if md.AverageVolume == nil || *md.AverageVolume != 51234567 {
		t.Errorf("average volume = %v", md.AverageVolume)
	}
	if md.DividendYield == nil || *md.DividendYield != 0.0051 {
		t.Errorf("dividend yield = %v", md.DividendYield)
	}
}

func TestNewYahooService_DefaultBaseURL(t *testing.T) {
	s := NewYahooService("", time.Second)
	if s.baseURL != "https://query1.finance.yahoo.com" {
		t.Errorf("baseURL = %s", s.baseURL)
	}
}

func TestYahooGetChart_ForbiddenTripsBreaker(t *testing.T) {
	registry := NewCircuitBreakerRegistry(CircuitBreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute})
	SetGlobalRegistry(registry)
	t.Cleanup(func() { SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)) })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	yahoo := NewYahooService(server.URL, 5*time.Second)
	for i := 0; i < 5; i++ {
		_, _ = yahoo.GetChart(context.Background(), "AAPL", "1mo", "1d")
	}

	if open := registry.OpenBreakers(); len(open) != 1 || open[0] != BreakerYahoo {
		t.Errorf("open breakers = %v, want yahoo tripped by a sustained block", open)
	}
	if got := categorizeAPIError(classifyStatus("yahoo", http.StatusForbidden)); got != "auth_error" {
		t.Errorf("category = %s, want auth_error", got)
	}
}
