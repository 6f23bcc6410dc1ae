package models

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// Market identifies the exchange family a symbol trades on
type Market string

const (
	MarketUS     Market = "US"
	MarketZA     Market = "ZA"
	MarketCrypto Market = "CRYPTO"
)

const (
	suffixJSE    = ".JO"
	suffixCrypto = "-USD"
)

// ParseMarket converts a user supplied market code into a Market
func ParseMarket(s string) (Market, error) {
	switch Market(strings.ToUpper(strings.TrimSpace(s))) {
	case MarketUS:
		return MarketUS, nil
	case MarketZA:
		return MarketZA, nil
	case MarketCrypto:
		return MarketCrypto, nil
	default:
		return "", fmt.Errorf("%w: unsupported market %q", ErrValidation, s)
	}
}

// Currency returns the quote currency for the market
func (m Market) Currency() string {
	if m == MarketZA {
		return "ZAR"
	}
	return "USD"
}

// IsValid reports whether m is one of the supported markets
func (m Market) IsValid() bool {
	return m == MarketUS || m == MarketZA || m == MarketCrypto
}

// NormalizeSymbol trims and uppercases a raw symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// FormatSymbol produces the upstream ticker for a symbol on the given market.
// JSE tickers carry a .JO suffix and crypto pairs a -USD suffix.
func FormatSymbol(symbol string, market Market) string {
	s := NormalizeSymbol(symbol)
	switch market {
	case MarketZA:
		if !strings.HasSuffix(s, suffixJSE) {
			return s + suffixJSE
		}
	case MarketCrypto:
		if !strings.HasSuffix(s, suffixCrypto) {
			return s + suffixCrypto
		}
	}
	return s
}

// DetermineMarket infers the market from an already qualified symbol
func DetermineMarket(symbol string) Market {
	s := NormalizeSymbol(symbol)
	switch {
	case strings.HasSuffix(s, suffixJSE):
		return MarketZA
	case strings.Contains(s, suffixCrypto):
		return MarketCrypto
	default:
		return MarketUS
	}
}

// TradingSession describes the regular session of a market
type TradingSession struct {
	Market   Market
	Location string
	Open     int // hour, local time
	Close    int // hour, local time
	Always   bool
}

// DefaultSessions are the regular trading sessions for each market
var DefaultSessions = []TradingSession{
	{Market: MarketUS, Location: "America/New_York", Open: 9, Close: 16},
	{Market: MarketZA, Location: "Africa/Johannesburg", Open: 9, Close: 17},
	{Market: MarketCrypto, Always: true},
}

// MarketStatus is the open/closed state of a market at a point in time
type MarketStatus struct {
	Market      Market    `json:"market"`
	IsOpen      bool      `json:"is_open"`
	Timezone    string    `json:"timezone"`
	LocalTime   time.Time `json:"local_time"`
	Description string    `json:"description"`
}

// Status computes the session state at now. Weekends are closed for
// exchange-traded markets.
func (s TradingSession) Status(now time.Time) (MarketStatus, error) {
	if s.Always {
		return MarketStatus{
			Market:      s.Market,
			IsOpen:      true,
			Timezone:    "UTC",
			LocalTime:   now.UTC(),
			Description: "Cryptocurrency markets trade 24/7",
		}, nil
	}

	loc, err := time.LoadLocation(s.Location)
	if err != nil {
		return MarketStatus{}, fmt.Errorf("failed to load location %s: %w", s.Location, err)
	}

	local := now.In(loc)
	weekday := local.Weekday()
	open := weekday != time.Saturday && weekday != time.Sunday &&
		local.Hour() >= s.Open && local.Hour() < s.Close

	return MarketStatus{
		Market:      s.Market,
		IsOpen:      open,
		Timezone:    s.Location,
		LocalTime:   local,
		Description: fmt.Sprintf("Regular session %02d:00-%02d:00 %s, weekdays", s.Open, s.Close, s.Location),
	}, nil
}

// SearchResult is a single entry in the symbol catalogue
type SearchResult struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Market Market `json:"market"`
	Sector string `json:"sector,omitempty"`
}
