package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock-analyst/models"
	"stock-analyst/observability"
)

// DefaultCallDelay is the pause taken before every upstream fetch
const DefaultCallDelay = time.Second

// MarketDataGateway serializes upstream market data calls through a single
// slot so that at most one fetch is in flight across the process
type MarketDataGateway struct {
	chart    ChartProvider
	metadata []MetadataProvider
	slot     chan struct{}
	delay    time.Duration
}

// GatewayOption configures a MarketDataGateway
type GatewayOption func(*MarketDataGateway)

// WithMetadataProviders sets the detailed metadata tiers, consulted in order
// after the chart metadata
func WithMetadataProviders(providers ...MetadataProvider) GatewayOption {
	return func(g *MarketDataGateway) {
		g.metadata = append(g.metadata, providers...)
	}
}

// WithCallDelay overrides the pre-call delay
func WithCallDelay(d time.Duration) GatewayOption {
	return func(g *MarketDataGateway) {
		g.delay = d
	}
}

// NewMarketDataGateway creates a gateway over the given history source
func NewMarketDataGateway(chart ChartProvider, opts ...GatewayOption) *MarketDataGateway {
	g := &MarketDataGateway{
		chart: chart,
		slot:  make(chan struct{}, 1),
		delay: DefaultCallDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fetch returns history and metadata for symbol. Missing history yields
// ErrNotFound; transport failures yield ErrUpstreamUnavailable. Metadata
// failures are logged and leave fields absent.
func (g *MarketDataGateway) Fetch(ctx context.Context, symbol string, market models.Market, period, interval string) (*models.RawMarketData, error) {
	ticker := models.FormatSymbol(symbol, market)
	log := observability.WithOperation(ticker, string(market), "fetch")

	if err := g.acquire(ctx); err != nil {
		return nil, err
	}
	defer g.release()

	if err := sleepCtx(ctx, g.delay); err != nil {
		return nil, fmt.Errorf("market data fetch for %s cancelled: %w", ticker, err)
	}

	chart, err := g.chart.GetChart(ctx, ticker, period, interval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, models.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %w", models.ErrUpstreamUnavailable, err)
		}
		log.Warn("price history fetch failed", "error", err)
		return nil, fmt.Errorf("fetch history for %s: %w", ticker, err)
	}
	if len(chart.History) == 0 {
		return nil, fmt.Errorf("no price history for %s: %w", ticker, models.ErrNotFound)
	}

	md := chart.Metadata
	for _, p := range g.metadata {
		if md.Complete() {
			break
		}
		detail, err := p.GetMetadata(ctx, ticker, market)
		if err != nil {
			log.Warn("metadata fetch failed, continuing without it", "error", err)
			continue
		}
		md.Merge(detail)
	}
	if md.CompanyName == nil {
		name := ticker
		md.CompanyName = &name
	}

	return &models.RawMarketData{
		Ticker:   ticker,
		Market:   market,
		Currency: market.Currency(),
		History:  chart.History,
		Metadata: md,
	}, nil
}

func (g *MarketDataGateway) acquire(ctx context.Context) error {
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveGatewayWait(BreakerYahoo)

	select {
	case g.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for market data slot: %w", ctx.Err())
	}
}

func (g *MarketDataGateway) release() {
	<-g.slot
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
