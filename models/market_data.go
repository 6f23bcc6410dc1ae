package models

import (
	"fmt"
	"time"
)

// PricePoint represents one OHLCV bar
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// TechnicalIndicators holds computed technical analysis indicators.
// A nil field means the indicator could not be computed.
type TechnicalIndicators struct {
	RSI           *float64 `json:"rsi"`
	SMA20         *float64 `json:"sma_20"`
	SMA50         *float64 `json:"sma_50"`
	SMA200        *float64 `json:"sma_200"`
	MACDLine      *float64 `json:"macd_line"`
	MACDSignal    *float64 `json:"macd_signal"`
	MACDHistogram *float64 `json:"macd_histogram"`
}

// IsEmpty reports whether no indicator could be computed
func (t TechnicalIndicators) IsEmpty() bool {
	return t.RSI == nil && t.SMA20 == nil && t.SMA50 == nil && t.SMA200 == nil &&
		t.MACDLine == nil && t.MACDSignal == nil && t.MACDHistogram == nil
}

// Metadata holds optional descriptive and fundamental fields for a symbol
type Metadata struct {
	CompanyName      *string  `json:"company_name,omitempty"`
	MarketCap        *float64 `json:"market_cap,omitempty"`
	PERatio          *float64 `json:"pe_ratio,omitempty"`
	DividendYield    *float64 `json:"dividend_yield,omitempty"`
	FiftyTwoWeekHigh *float64 `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow  *float64 `json:"fifty_two_week_low,omitempty"`
	AverageVolume    *int64   `json:"average_volume,omitempty"`
}

// Merge fills fields that are still nil from other
func (m *Metadata) Merge(other Metadata) {
	if m.CompanyName == nil {
		m.CompanyName = other.CompanyName
	}
	if m.MarketCap == nil {
		m.MarketCap = other.MarketCap
	}
	if m.PERatio == nil {
		m.PERatio = other.PERatio
	}
	if m.DividendYield == nil {
		m.DividendYield = other.DividendYield
	}
	if m.FiftyTwoWeekHigh == nil {
		m.FiftyTwoWeekHigh = other.FiftyTwoWeekHigh
	}
	if m.FiftyTwoWeekLow == nil {
		m.FiftyTwoWeekLow = other.FiftyTwoWeekLow
	}
	if m.AverageVolume == nil {
		m.AverageVolume = other.AverageVolume
	}
}

// Complete reports whether every metadata field is populated
func (m Metadata) Complete() bool {
	return m.CompanyName != nil && m.MarketCap != nil && m.PERatio != nil &&
		m.DividendYield != nil && m.FiftyTwoWeekHigh != nil && m.FiftyTwoWeekLow != nil &&
		m.AverageVolume != nil
}

// RawMarketData is what the market data gateway returns for one symbol
type RawMarketData struct {
	Ticker   string       `json:"ticker"`
	Market   Market       `json:"market"`
	Currency string       `json:"currency"`
	History  []PricePoint `json:"history"`
	Metadata Metadata     `json:"metadata"`
}

// CacheInfo describes how a response was produced. It is attached to
// responses only and never persisted.
type CacheInfo struct {
	IsCached   bool     `json:"is_cached"`
	CacheKey   string   `json:"cache_key"`
	Message    string   `json:"message"`
	TokensUsed *int64   `json:"tokens_used,omitempty"`
	CostUSD    *float64 `json:"cost_usd,omitempty"`
}

// StockSnapshot is the indicator-enriched view of a symbol
type StockSnapshot struct {
	Symbol           string              `json:"symbol"`
	Market           Market              `json:"market"`
	CompanyName      string              `json:"company_name"`
	CurrentPrice     float64             `json:"current_price"`
	Currency         string              `json:"currency"`
	ChangePercent    float64             `json:"change_percent"`
	Volume           int64               `json:"volume"`
	MarketCap        *float64            `json:"market_cap,omitempty"`
	PERatio          *float64            `json:"pe_ratio,omitempty"`
	DividendYield    *float64            `json:"dividend_yield,omitempty"`
	FiftyTwoWeekHigh *float64            `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow  *float64            `json:"fifty_two_week_low,omitempty"`
	AverageVolume    *int64              `json:"average_volume,omitempty"`
	PriceChanges     map[string]float64  `json:"price_changes"`
	History          []PricePoint        `json:"historical_data"`
	Indicators       TechnicalIndicators `json:"technical_indicators"`
	CacheInfo        *CacheInfo          `json:"cache_info,omitempty"`
}

// Closes returns the close prices of the history in order
func (s *StockSnapshot) Closes() []float64 {
	closes := make([]float64, len(s.History))
	for i, p := range s.History {
		closes[i] = p.Close
	}
	return closes
}

// SnapshotCacheKey builds the cache key for a snapshot request
func SnapshotCacheKey(symbol string, market Market, period, interval string) string {
	return fmt.Sprintf("data:%s:%s:%s:%s", market, NormalizeSymbol(symbol), period, interval)
}

// Cache key prefixes
const (
	SnapshotKeyPrefix = "data:"
	AnalysisKeyPrefix = "analysis:"
)
