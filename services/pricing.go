package services

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Rate is a provider price per million tokens in USD
type Rate struct {
	InputPerMillion  decimal.Decimal
	OutputPerMillion decimal.Decimal
}

type modelRate struct {
	prefix string
	rate   Rate
}

func rate(input, output string) Rate {
	return Rate{
		InputPerMillion:  decimal.RequireFromString(input),
		OutputPerMillion: decimal.RequireFromString(output),
	}
}

// Ordered so that longer model names match before their prefixes
var rateCard = []modelRate{
	{"gpt-4o-mini", rate("0.150", "0.600")},
	{"gpt-4o", rate("2.50", "10.00")},
	{"gpt-4.1-mini", rate("0.40", "1.60")},
	{"gpt-4.1", rate("2.00", "8.00")},
	{"claude-3-haiku", rate("0.25", "1.25")},
	{"claude-3-5-haiku", rate("0.80", "4.00")},
	{"claude-3-5-sonnet", rate("3.00", "15.00")},
	{"claude-sonnet-4", rate("3.00", "15.00")},
	{"gemini-2.0-flash", rate("0.10", "0.40")},
	{"gemini-2.5-flash", rate("0.30", "2.50")},
	{"gemini-2.5-pro", rate("1.25", "10.00")},
}

// DefaultRate applies to models missing from the rate card
var DefaultRate = rate("0.150", "0.600")

var perMillion = decimal.NewFromInt(1_000_000)

// RateFor returns the price for model. Bedrock ids such as
// "anthropic.claude-3-haiku-20240307-v1:0" match on the embedded model name.
func RateFor(model string) Rate {
	m := strings.ToLower(model)
	if i := strings.Index(m, "claude"); i > 0 {
		m = m[i:]
	}
	for _, mr := range rateCard {
		if strings.HasPrefix(m, mr.prefix) {
			return mr.rate
		}
	}
	return DefaultRate
}

// Cost returns the USD cost of a completion
func Cost(model string, promptTokens, completionTokens int64) decimal.Decimal {
	r := RateFor(model)
	in := decimal.NewFromInt(promptTokens).Mul(r.InputPerMillion)
	out := decimal.NewFromInt(completionTokens).Mul(r.OutputPerMillion)
	return in.Add(out).Div(perMillion)
}
