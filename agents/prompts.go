package agents

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"stock-analyst/models"
	"stock-analyst/services"
)

const basePrompt = "You are a professional financial analyst with 15+ years of experience in market analysis."

// SystemPrompt returns the market-specialised system prompt
func SystemPrompt(market models.Market) string {
	switch market {
	case models.MarketCrypto:
		return basePrompt + " You specialize in cryptocurrency analysis, understanding blockchain fundamentals, tokenomics, and crypto market dynamics. You stay updated on regulatory developments and technological innovations in the crypto space."
	case models.MarketZA:
		return basePrompt + " You specialize in South African (JSE) market analysis, understanding local economic conditions, currency impacts (ZAR), and JSE-specific factors. You're familiar with South African companies and their business environments."
	default:
		return basePrompt + " You specialize in US stock market analysis, understanding American companies, SEC regulations, and US economic indicators. You're well-versed in fundamental and technical analysis of US equities."
	}
}

// AnalysisSchema is the structured output contract for an analysis
var AnalysisSchema = &services.JSONSchema{
	Name:        "stock_analysis",
	Description: "Investment analysis with a BUY/HOLD/SELL recommendation, confidence, price targets and categorized key points.",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recommendation": map[string]any{
				"type": "string",
				"enum": []string{"BUY", "HOLD", "SELL"},
			},
			"confidence_score": map[string]any{
				"type":        "number",
				"description": "Confidence from 0 to 1",
				"minimum":     0,
				"maximum":     1,
			},
			"target_price": map[string]any{
				"type":    "number",
				"minimum": 0,
			},
			"analysis_summary": map[string]any{
				"type":      "string",
				"maxLength": models.MaxSummaryLength,
			},
			"key_points": map[string]any{
				"type":     "array",
				"maxItems": models.MaxKeyPoints,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"category": map[string]any{
							"type": "string",
							"enum": []string{"technical", "fundamental", "market", "risk"},
						},
						"point": map[string]any{
							"type":      "string",
							"maxLength": models.MaxKeyPointLength,
						},
						"sentiment": map[string]any{
							"type": "string",
							"enum": []string{"positive", "negative", "neutral"},
						},
					},
					"required":             []string{"category", "point", "sentiment"},
					"additionalProperties": false,
				},
			},
			"price_targets": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"bearish": map[string]any{"type": "number", "minimum": 0},
					"neutral": map[string]any{"type": "number", "minimum": 0},
					"bullish": map[string]any{"type": "number", "minimum": 0},
				},
				"required":             []string{"bearish", "neutral", "bullish"},
				"additionalProperties": false,
			},
		},
		"required":             []string{"recommendation", "confidence_score", "target_price", "analysis_summary", "key_points", "price_targets"},
		"additionalProperties": false,
	},
}

// BuildAnalysisPrompt renders the snapshot into the user prompt
func BuildAnalysisPrompt(snap *models.StockSnapshot) string {
	indicators := strings.Join(indicatorLines(snap), " | ")
	if indicators == "" {
		indicators = "Insufficient data for indicators"
	}
	changes := strings.Join(priceChangeLines(snap.PriceChanges), " | ")
	if changes == "" {
		changes = "Limited historical data"
	}
	sym := currencySymbol(snap.Currency)
	rangeLine := fmt.Sprintf("52-Week Range: %s - %s", money(sym, snap.FiftyTwoWeekLow), money(sym, snap.FiftyTwoWeekHigh))

	var b strings.Builder
	if snap.Market == models.MarketCrypto {
		fmt.Fprintf(&b, "Analyze the cryptocurrency %s (%s) based on the following data:\n\n", snap.CompanyName, snap.Symbol)
		b.WriteString("CURRENT DATA:\n")
		fmt.Fprintf(&b, "- Current Price: $%s\n", groupThousands(snap.CurrentPrice, 2))
		fmt.Fprintf(&b, "- 24h Change: %+.2f%%\n", snap.ChangePercent)
		fmt.Fprintf(&b, "- Volume: %s\n", groupThousands(float64(snap.Volume), 0))
		fmt.Fprintf(&b, "- Market Cap: %s\n\n", marketCap(snap.MarketCap))
		fmt.Fprintf(&b, "PRICE PERFORMANCE:\n%s\n\n", changes)
		fmt.Fprintf(&b, "TECHNICAL INDICATORS:\n%s\n\n", indicators)
		fmt.Fprintf(&b, "%s\n\n", rangeLine)
		b.WriteString("Please provide a comprehensive analysis considering:\n")
		b.WriteString("1. Technical analysis based on the indicators and price action\n")
		b.WriteString("2. Market sentiment and crypto-specific factors\n")
		b.WriteString("3. Risk assessment for cryptocurrency volatility\n")
		b.WriteString("4. Potential price targets (bearish, neutral, bullish scenarios)\n\n")
		b.WriteString("Provide a clear BUY/HOLD/SELL recommendation with confidence score and reasoning.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Analyze the stock %s (%s) based on the following data:\n\n", snap.CompanyName, snap.Symbol)
	b.WriteString("CURRENT DATA:\n")
	fmt.Fprintf(&b, "- Current Price: %s%s\n", sym, groupThousands(snap.CurrentPrice, 2))
	fmt.Fprintf(&b, "- Daily Change: %+.2f%%\n", snap.ChangePercent)
	fmt.Fprintf(&b, "- Volume: %s\n", groupThousands(float64(snap.Volume), 0))
	avgVolume := "N/A"
	if snap.AverageVolume != nil {
		avgVolume = groupThousands(float64(*snap.AverageVolume), 0)
	}
	fmt.Fprintf(&b, "- Average Volume: %s\n\n", avgVolume)
	b.WriteString("VALUATION METRICS:\n")
	fmt.Fprintf(&b, "- Market Cap: %s\n", marketCap(snap.MarketCap))
	fmt.Fprintf(&b, "- P/E Ratio: %s\n", optional(snap.PERatio, "%.2f"))
	dividend := "N/A"
	if snap.DividendYield != nil {
		dividend = fmt.Sprintf("%.2f%%", *snap.DividendYield*100)
	}
	fmt.Fprintf(&b, "- Dividend Yield: %s\n\n", dividend)
	fmt.Fprintf(&b, "PRICE PERFORMANCE:\n%s\n\n", changes)
	fmt.Fprintf(&b, "TECHNICAL INDICATORS:\n%s\n\n", indicators)
	fmt.Fprintf(&b, "%s\n\n", rangeLine)
	b.WriteString("Please provide a comprehensive analysis considering:\n")
	b.WriteString("1. Technical analysis based on the indicators and price trends\n")
	b.WriteString("2. Fundamental valuation using P/E ratio and market cap\n")
	b.WriteString("3. Risk assessment and market conditions\n")
	b.WriteString("4. Price targets for different scenarios (bearish, neutral, bullish)\n\n")
	b.WriteString("Provide a clear BUY/HOLD/SELL recommendation with confidence score and detailed reasoning.\n")
	return b.String()
}

func indicatorLines(snap *models.StockSnapshot) []string {
	ind := snap.Indicators
	var lines []string

	if ind.RSI != nil {
		interpretation := "neutral"
		switch {
		case *ind.RSI > 70:
			interpretation = "overbought"
		case *ind.RSI < 30:
			interpretation = "oversold"
		}
		lines = append(lines, fmt.Sprintf("RSI: %.2f (%s)", *ind.RSI, interpretation))
	}

	smas := []struct {
		label string
		value *float64
	}{
		{"20-day SMA", ind.SMA20},
		{"50-day SMA", ind.SMA50},
		{"200-day SMA", ind.SMA200},
	}
	for _, sma := range smas {
		if sma.value == nil {
			continue
		}
		position := "below"
		if snap.CurrentPrice > *sma.value {
			position = "above"
		}
		lines = append(lines, fmt.Sprintf("%s: %.2f (price is %s)", sma.label, *sma.value, position))
	}

	if ind.MACDLine != nil && ind.MACDSignal != nil {
		signal := "bearish"
		if *ind.MACDLine > *ind.MACDSignal {
			signal = "bullish"
		}
		lines = append(lines, fmt.Sprintf("MACD: %.4f (signal: %s)", *ind.MACDLine, signal))
	}
	return lines
}

var priceChangeOrder = []string{"5d", "1m"}

func priceChangeLines(changes map[string]float64) []string {
	lines := make([]string, 0, len(changes))
	for _, label := range priceChangeOrder {
		if v, ok := changes[label]; ok {
			lines = append(lines, fmt.Sprintf("%s: %+.2f%%", label, v))
		}
	}
	return lines
}

func currencySymbol(currency string) string {
	if currency == "ZAR" {
		return "R"
	}
	return "$"
}

func money(symbol string, v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%s%.2f", symbol, *v)
}

func marketCap(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return "$" + groupThousands(*v, 0)
}

func optional(v *float64, format string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf(format, *v)
}

// groupThousands formats v with comma separated thousands
func groupThousands(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "N/A"
	}
	s := strconv.FormatFloat(math.Abs(v), 'f', decimals, 64)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}
