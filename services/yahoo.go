package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"stock-analyst/models"
	"stock-analyst/observability"
)

// YahooService fetches price history and quote metadata from the Yahoo
// Finance public API
type YahooService struct {
	httpClient *http.Client
	baseURL    string
}

// NewYahooService creates a new YahooService instance
func NewYahooService(baseURL string, timeout time.Duration) *YahooService {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &YahooService{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// yahooChart is the response structure from the chart API. Nullable bars
// decode to nil pointers.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol           string   `json:"symbol"`
				Currency         string   `json:"currency"`
				LongName         string   `json:"longName"`
				ShortName        string   `json:"shortName"`
				FiftyTwoWeekHigh *float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow  *float64 `json:"fiftyTwoWeekLow"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// yahooValue is the {"raw": ..., "fmt": ...} wrapper used by quoteSummary
type yahooValue struct {
	Raw *float64 `json:"raw"`
}

type yahooQuoteSummary struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				LongName  string     `json:"longName"`
				ShortName string     `json:"shortName"`
				MarketCap yahooValue `json:"marketCap"`
			} `json:"price"`
			SummaryDetail struct {
				TrailingPE          yahooValue `json:"trailingPE"`
				ForwardPE           yahooValue `json:"forwardPE"`
				DividendYield       yahooValue `json:"dividendYield"`
				FiftyTwoWeekHigh    yahooValue `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow     yahooValue `json:"fiftyTwoWeekLow"`
				AverageVolume       yahooValue `json:"averageVolume"`
				AverageVolume10Days yahooValue `json:"averageVolume10days"`
				MarketCap           yahooValue `json:"marketCap"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				ForwardPE yahooValue `json:"forwardPE"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"quoteSummary"`
}

// ChartData is price history plus the metadata carried on the chart response
type ChartData struct {
	History  []models.PricePoint
	Metadata models.Metadata
}

// GetChart returns the OHLCV history for ticker over period at interval
func (s *YahooService) GetChart(ctx context.Context, ticker, period, interval string) (*ChartData, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerYahoo, "chart")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerYahoo, func() (*ChartData, error) {
		params := url.Values{}
		params.Set("range", period)
		params.Set("interval", interval)
		params.Set("includePrePost", "false")
		endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", s.baseURL, url.PathEscape(ticker), params.Encode())

		var chart yahooChart
		if err := s.getJSON(ctx, endpoint, &chart); err != nil {
			return nil, err
		}
		if chart.Chart.Error != nil {
			return nil, fmt.Errorf("yahoo chart error for %s: %s: %w", ticker, chart.Chart.Error.Description, models.ErrNotFound)
		}
		if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
			len(chart.Chart.Result[0].Indicators.Quote) == 0 {
			return nil, fmt.Errorf("yahoo returned no data for %s: %w", ticker, models.ErrNotFound)
		}

		res := chart.Chart.Result[0]
		history := parseBars(res.Timestamp, res.Indicators.Quote[0].Open, res.Indicators.Quote[0].High,
			res.Indicators.Quote[0].Low, res.Indicators.Quote[0].Close, res.Indicators.Quote[0].Volume)
		if len(history) == 0 {
			return nil, fmt.Errorf("yahoo returned only empty bars for %s: %w", ticker, models.ErrNotFound)
		}

		data := &ChartData{History: history}
		if name := firstNonEmpty(res.Meta.LongName, res.Meta.ShortName); name != "" {
			data.Metadata.CompanyName = &name
		}
		data.Metadata.FiftyTwoWeekHigh = res.Meta.FiftyTwoWeekHigh
		data.Metadata.FiftyTwoWeekLow = res.Meta.FiftyTwoWeekLow
		return data, nil
	})

	timer.ObserveExternalAPI(BreakerYahoo, "chart")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerYahoo, "chart", categorizeAPIError(err))
	}
	return result, err
}

// GetMetadata returns the detailed quote summary for ticker
func (s *YahooService) GetMetadata(ctx context.Context, ticker string, _ models.Market) (models.Metadata, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerYahoo, "quote_summary")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerYahoo, func() (models.Metadata, error) {
		params := url.Values{}
		params.Set("modules", "price,summaryDetail,defaultKeyStatistics")
		endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s", s.baseURL, url.PathEscape(ticker), params.Encode())

		var summary yahooQuoteSummary
		if err := s.getJSON(ctx, endpoint, &summary); err != nil {
			return models.Metadata{}, err
		}
		if summary.QuoteSummary.Error != nil {
			return models.Metadata{}, fmt.Errorf("yahoo quote summary error for %s: %s: %w", ticker, summary.QuoteSummary.Error.Description, models.ErrNotFound)
		}
		if len(summary.QuoteSummary.Result) == 0 {
			return models.Metadata{}, fmt.Errorf("yahoo returned no quote summary for %s: %w", ticker, models.ErrNotFound)
		}

		res := summary.QuoteSummary.Result[0]
		var md models.Metadata
		if name := firstNonEmpty(res.Price.LongName, res.Price.ShortName); name != "" {
			md.CompanyName = &name
		}
		md.MarketCap = firstRaw(res.Price.MarketCap, res.SummaryDetail.MarketCap)
		md.PERatio = firstRaw(res.SummaryDetail.TrailingPE, res.SummaryDetail.ForwardPE, res.DefaultKeyStatistics.ForwardPE)
		md.DividendYield = res.SummaryDetail.DividendYield.Raw
		md.FiftyTwoWeekHigh = res.SummaryDetail.FiftyTwoWeekHigh.Raw
		md.FiftyTwoWeekLow = res.SummaryDetail.FiftyTwoWeekLow.Raw
		if v := firstRaw(res.SummaryDetail.AverageVolume, res.SummaryDetail.AverageVolume10Days); v != nil {
			avg := int64(*v)
			md.AverageVolume = &avg
		}
		return md, nil
	})

	timer.ObserveExternalAPI(BreakerYahoo, "quote_summary")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerYahoo, "quote_summary", categorizeAPIError(err))
	}
	return result, err
}

func (s *YahooService) getJSON(ctx context.Context, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("yahoo request failed: %w: %w", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("yahoo read body: %w: %w", models.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return classifyStatus("yahoo", resp.StatusCode)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("yahoo decode: %w: %w", models.ErrUpstreamUnavailable, err)
	}
	return nil
}

// parseBars zips the chart arrays into price points, skipping bars with no
// close (holidays, halted sessions)
func parseBars(timestamps []int64, open, high, low, closes []*float64, volume []*int64) []models.PricePoint {
	at := func(vals []*float64, i int, fallback float64) float64 {
		if i < len(vals) && vals[i] != nil {
			return *vals[i]
		}
		return fallback
	}

	bars := make([]models.PricePoint, 0, len(timestamps))
	for i, ts := range timestamps {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		c := *closes[i]
		var vol int64
		if i < len(volume) && volume[i] != nil {
			vol = *volume[i]
		}
		bars = append(bars, models.PricePoint{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      at(open, i, c),
			High:      at(high, i, c),
			Low:       at(low, i, c),
			Close:     c,
			Volume:    vol,
		})
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstRaw(vals ...yahooValue) *float64 {
	for _, v := range vals {
		if v.Raw != nil {
			return v.Raw
		}
	}
	return nil
}
