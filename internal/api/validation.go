package api

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"stock-analyst/internal/app"
	"stock-analyst/models"
)

const (
	maxSymbolLength = 10
	maxSearchLimit  = 50
)

var (
	symbolPattern = regexp.MustCompile(`^[A-Z0-9.-]+$`)

	validPeriods       = []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"}
	validIntervals     = []string{"1m", "2m", "5m", "15m", "30m", "60m", "90m", "1h", "1d", "5d", "1wk", "1mo", "3mo"}
	validAnalysisTypes = []string{"technical", "fundamental", "sentiment", "comprehensive"}
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrValidation, fmt.Sprintf(format, args...))
}

// ValidateSymbol normalizes and validates a ticker symbol
func ValidateSymbol(symbol string) (string, error) {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return "", invalid("symbol cannot be empty")
	}
	if !symbolPattern.MatchString(symbol) {
		return "", invalid("invalid symbol format, only letters, numbers, dots and hyphens allowed")
	}
	if len(symbol) > maxSymbolLength {
		return "", invalid("symbol too long (max %d characters)", maxSymbolLength)
	}
	return symbol, nil
}

// ValidateSymbols validates every symbol of a list of at most max entries
func ValidateSymbols(symbols []string, max int) ([]string, error) {
	if len(symbols) == 0 {
		return nil, invalid("symbols list cannot be empty")
	}
	if len(symbols) > max {
		return nil, invalid("too many symbols, maximum %d allowed", max)
	}
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		v, err := ValidateSymbol(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ValidateMarket parses a market, optionally accepting "ALL"
func ValidateMarket(market string, allowAll bool) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(market))
	if allowAll && m == app.MarketAll {
		return m, nil
	}
	parsed, err := models.ParseMarket(m)
	if err != nil {
		options := "US, ZA, CRYPTO"
		if allowAll {
			options += ", ALL"
		}
		return "", invalid("invalid market, must be one of: %s", options)
	}
	return string(parsed), nil
}

// ValidatePeriod checks a history period
func ValidatePeriod(period string) (string, error) {
	if !slices.Contains(validPeriods, period) {
		return "", invalid("invalid period, must be one of: %s", strings.Join(validPeriods, ", "))
	}
	return period, nil
}

// ValidateInterval checks a bar interval
func ValidateInterval(interval string) (string, error) {
	if !slices.Contains(validIntervals, interval) {
		return "", invalid("invalid interval, must be one of: %s", strings.Join(validIntervals, ", "))
	}
	return interval, nil
}

// ValidateAnalysisType checks the requested analysis flavour
func ValidateAnalysisType(analysisType string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(analysisType))
	if !slices.Contains(validAnalysisTypes, t) {
		return "", invalid("invalid analysis type, must be one of: %s", strings.Join(validAnalysisTypes, ", "))
	}
	return t, nil
}

// ParseLimit parses the limit query parameter within 1..max
func ParseLimit(raw string, defaultLimit, max int) (int, error) {
	if raw == "" {
		return defaultLimit, nil
	}
	l, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid("limit must be an integer")
	}
	if l < 1 {
		return 0, invalid("limit must be at least 1")
	}
	if l > max {
		return 0, invalid("limit too high, maximum %d allowed", max)
	}
	return l, nil
}
