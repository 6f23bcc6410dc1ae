package services

import (
	"context"

	"stock-analyst/models"
)

// ChartProvider returns price history for a market-formatted ticker
type ChartProvider interface {
	GetChart(ctx context.Context, ticker, period, interval string) (*ChartData, error)
}

// MetadataProvider returns best-effort descriptive fields for a ticker
type MetadataProvider interface {
	GetMetadata(ctx context.Context, ticker string, market models.Market) (models.Metadata, error)
}

// MarketDataFetcher is the gateway contract consumed by the snapshot service
type MarketDataFetcher interface {
	Fetch(ctx context.Context, symbol string, market models.Market, period, interval string) (*models.RawMarketData, error)
}

// Completer is a chat-completion style AI provider
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Model() string
	Provider() string
}

// Compile-time interface verification
var (
	_ ChartProvider     = (*YahooService)(nil)
	_ MetadataProvider  = (*YahooService)(nil)
	_ MetadataProvider  = (*AlphaVantageService)(nil)
	_ MarketDataFetcher = (*MarketDataGateway)(nil)
	_ Completer         = (*OpenAIService)(nil)
	_ Completer         = (*BedrockService)(nil)
	_ Completer         = (*AnthropicService)(nil)
	_ Completer         = (*GeminiService)(nil)
)
