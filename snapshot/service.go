package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock-analyst/indicators"
	"stock-analyst/models"
	"stock-analyst/observability"
	"stock-analyst/repository"
	"stock-analyst/services"
)

const (
	cachedMessage = "This stock data was retrieved from cache"
	freshMessage  = "This stock data was freshly fetched from the market data provider"
)

// Service builds indicator-enriched snapshots, consulting the cache before
// the market data gateway
type Service struct {
	cache   repository.Store
	gateway services.MarketDataFetcher
	ttl     time.Duration
}

// NewService creates a new snapshot service
func NewService(cache repository.Store, gateway services.MarketDataFetcher, ttl time.Duration) *Service {
	return &Service{
		cache:   cache,
		gateway: gateway,
		ttl:     ttl,
	}
}

// GetSnapshot returns the snapshot for symbol. A cache hit does no upstream
// work. A miss fetches, computes indicators and writes the result back
// without its cache info. Failures are never cached.
func (s *Service) GetSnapshot(ctx context.Context, symbol string, market models.Market, period, interval string) (*models.StockSnapshot, error) {
	key := models.SnapshotCacheKey(symbol, market, period, interval)
	metrics := observability.GetMetrics()
	log := observability.WithOperation(models.NormalizeSymbol(symbol), string(market), "snapshot")

	var cached models.StockSnapshot
	if s.cache.Get(ctx, key, &cached) == repository.LookupHit {
		metrics.RecordSnapshotRequest(string(market), "hit")
		cached.CacheInfo = &models.CacheInfo{
			IsCached: true,
			CacheKey: key,
			Message:  cachedMessage,
		}
		return &cached, nil
	}
	metrics.RecordSnapshotRequest(string(market), "miss")

	raw, err := s.gateway.Fetch(ctx, symbol, market, period, interval)
	if err != nil {
		log.Warn("snapshot fetch failed", "error", err)
		return nil, err
	}

	snap := Build(raw)
	if !s.cache.Set(ctx, key, snap, s.ttl) {
		log.Debug("snapshot not cached", "key", key)
	}

	snap.CacheInfo = &models.CacheInfo{
		IsCached: false,
		CacheKey: key,
		Message:  freshMessage,
	}
	return snap, nil
}

// GetBatch fetches snapshots one symbol at a time, inferring each market
// from the symbol. Symbols that fail are skipped.
func (s *Service) GetBatch(ctx context.Context, symbols []string, period, interval string) ([]*models.StockSnapshot, error) {
	out := make([]*models.StockSnapshot, 0, len(symbols))
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("batch cancelled: %w", err)
		}
		market := models.DetermineMarket(symbol)
		snap, err := s.GetSnapshot(ctx, symbol, market, period, interval)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return out, err
			}
			observability.Warn("skipping symbol in batch", "symbol", symbol, "market", market, "error", err)
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// Build turns raw market data into a snapshot. raw.History must be non-empty.
func Build(raw *models.RawMarketData) *models.StockSnapshot {
	history := raw.History
	last := history[len(history)-1]

	snap := &models.StockSnapshot{
		Symbol:           raw.Ticker,
		Market:           raw.Market,
		CurrentPrice:     last.Close,
		Currency:         raw.Currency,
		Volume:           last.Volume,
		MarketCap:        raw.Metadata.MarketCap,
		PERatio:          raw.Metadata.PERatio,
		DividendYield:    raw.Metadata.DividendYield,
		FiftyTwoWeekHigh: raw.Metadata.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:  raw.Metadata.FiftyTwoWeekLow,
		AverageVolume:    raw.Metadata.AverageVolume,
		PriceChanges:     map[string]float64{},
		History:          history,
	}
	if raw.Metadata.CompanyName != nil {
		snap.CompanyName = *raw.Metadata.CompanyName
	} else {
		snap.CompanyName = raw.Ticker
	}

	n := len(history)
	if n >= 2 {
		snap.ChangePercent = percentChange(history[n-2].Close, last.Close)
	}
	if n >= 6 {
		snap.PriceChanges["5d"] = percentChange(history[n-6].Close, last.Close)
	}
	if n >= 22 {
		snap.PriceChanges["1m"] = percentChange(history[n-22].Close, last.Close)
	}

	snap.Indicators = indicators.Compute(snap.Closes())
	return snap
}

func percentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}
