package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stock-analyst/models"
	"stock-analyst/observability"
)

// AlphaVantageService fills metadata gaps for US equities from the Alpha
// Vantage company overview
type AlphaVantageService struct {
	apiKey      string
	httpClient  *http.Client
	baseURL     string
	retryConfig RetryConfig
}

// NewAlphaVantageService creates a new AlphaVantageService instance
func NewAlphaVantageService(apiKey, baseURL string) *AlphaVantageService {
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co/query"
	}
	return &AlphaVantageService{
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		retryConfig: DefaultRetryConfig,
	}
}

// OverviewResponse represents the company overview response from Alpha Vantage
type OverviewResponse struct {
	Symbol        string `json:"Symbol"`
	Name          string `json:"Name"`
	Exchange      string `json:"Exchange"`
	Currency      string `json:"Currency"`
	Sector        string `json:"Sector"`
	MarketCap     string `json:"MarketCapitalization"`
	PERatio       string `json:"PERatio"`
	ForwardPE     string `json:"ForwardPE"`
	DividendYield string `json:"DividendYield"`
	Week52High    string `json:"52WeekHigh"`
	Week52Low     string `json:"52WeekLow"`

	// Set instead of data when the free tier quota is exhausted
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// GetMetadata returns overview metadata for US tickers. Other markets are
// not covered and yield empty metadata.
func (s *AlphaVantageService) GetMetadata(ctx context.Context, ticker string, market models.Market) (models.Metadata, error) {
	if market != models.MarketUS {
		return models.Metadata{}, nil
	}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlphaVantage, "overview")
	timer := metrics.NewTimer()

	var md models.Metadata
	err := WithRetry(ctx, s.retryConfig, func() error {
		overview, err := WithCircuitBreaker(ctx, BreakerAlphaVantage, func() (*OverviewResponse, error) {
			return s.fetchOverview(ctx, ticker)
		})
		if err != nil {
			return err
		}
		md = overview.Metadata()
		return nil
	})

	timer.ObserveExternalAPI(BreakerAlphaVantage, "overview")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, "overview", categorizeAPIError(err))
		return models.Metadata{}, err
	}
	return md, nil
}

func (s *AlphaVantageService) fetchOverview(ctx context.Context, ticker string) (*OverviewResponse, error) {
	params := url.Values{}
	params.Set("function", "OVERVIEW")
	params.Set("symbol", ticker)
	params.Set("apikey", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch overview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus("alphavantage", resp.StatusCode)
	}

	var overview OverviewResponse
	if err := json.NewDecoder(resp.Body).Decode(&overview); err != nil {
		return nil, fmt.Errorf("failed to decode overview: %w", err)
	}

	if overview.Note != "" || overview.Information != "" {
		return nil, fmt.Errorf("alphavantage rate limit: %s", firstNonEmpty(overview.Note, overview.Information))
	}
	if overview.Symbol == "" {
		return nil, fmt.Errorf("alphavantage has no overview for %s: %w", ticker, models.ErrNotFound)
	}

	return &overview, nil
}

// Metadata converts the overview strings into optional metadata fields
func (o *OverviewResponse) Metadata() models.Metadata {
	var md models.Metadata
	if o.Name != "" {
		name := o.Name
		md.CompanyName = &name
	}
	md.MarketCap = parseOverviewFloat("MarketCapitalization", o.MarketCap)
	md.PERatio = parseOverviewFloat("PERatio", o.PERatio)
	if md.PERatio == nil {
		md.PERatio = parseOverviewFloat("ForwardPE", o.ForwardPE)
	}
	md.DividendYield = parseOverviewFloat("DividendYield", o.DividendYield)
	md.FiftyTwoWeekHigh = parseOverviewFloat("52WeekHigh", o.Week52High)
	md.FiftyTwoWeekLow = parseOverviewFloat("52WeekLow", o.Week52Low)
	return md
}

// parseOverviewFloat parses an overview number, treating "None", "-" and
// empty strings as absent
func parseOverviewFloat(field, raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "None" || raw == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		observability.Debug("failed to parse alphavantage field", "field", field, "value", raw, "error", err)
		return nil
	}
	return &v
}
