package app

import (
	"strings"

	"stock-analyst/models"
)

// MarketAll selects every market in a catalogue search
const MarketAll = "ALL"

var catalogue = []models.SearchResult{
	{Symbol: "AAPL", Name: "Apple Inc.", Market: models.MarketUS, Sector: "Technology"},
	{Symbol: "GOOGL", Name: "Alphabet Inc.", Market: models.MarketUS, Sector: "Technology"},
	{Symbol: "MSFT", Name: "Microsoft Corporation", Market: models.MarketUS, Sector: "Technology"},
	{Symbol: "AMZN", Name: "Amazon.com Inc.", Market: models.MarketUS, Sector: "Consumer Discretionary"},
	{Symbol: "TSLA", Name: "Tesla Inc.", Market: models.MarketUS, Sector: "Consumer Discretionary"},
	{Symbol: "NVDA", Name: "NVIDIA Corporation", Market: models.MarketUS, Sector: "Technology"},
	{Symbol: "META", Name: "Meta Platforms Inc.", Market: models.MarketUS, Sector: "Technology"},
	{Symbol: "JPM", Name: "JPMorgan Chase & Co.", Market: models.MarketUS, Sector: "Financial Services"},
	{Symbol: "BTC-USD", Name: "Bitcoin", Market: models.MarketCrypto, Sector: "Cryptocurrency"},
	{Symbol: "ETH-USD", Name: "Ethereum", Market: models.MarketCrypto, Sector: "Cryptocurrency"},
	{Symbol: "ADA-USD", Name: "Cardano", Market: models.MarketCrypto, Sector: "Cryptocurrency"},
	{Symbol: "DOGE-USD", Name: "Dogecoin", Market: models.MarketCrypto, Sector: "Cryptocurrency"},
	{Symbol: "NPN.JO", Name: "Naspers Limited", Market: models.MarketZA, Sector: "Technology"},
	{Symbol: "SHP.JO", Name: "Shoprite Holdings", Market: models.MarketZA, Sector: "Consumer Staples"},
}

// SearchCatalogue matches query against catalogue tickers and names, case
// insensitively, in catalogue order
func SearchCatalogue(query, market string, limit int) []models.SearchResult {
	results := make([]models.SearchResult, 0)
	q := strings.TrimSpace(query)
	if q == "" || limit <= 0 {
		return results
	}
	upper, lower := strings.ToUpper(q), strings.ToLower(q)

	for _, entry := range catalogue {
		if market != MarketAll && string(entry.Market) != market {
			continue
		}
		if strings.Contains(entry.Symbol, upper) || strings.Contains(strings.ToLower(entry.Name), lower) {
			results = append(results, entry)
			if len(results) >= limit {
				break
			}
		}
	}
	return results
}
