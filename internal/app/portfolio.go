package app

import (
	"context"
	"errors"
	"fmt"

	"stock-analyst/models"
	"stock-analyst/observability"

	"github.com/shopspring/decimal"
)

const (
	profitTakingPercent = 20.0
	reviewPercent       = -15.0
	concentrationLimit  = 30.0
)

// AnalyzePortfolio prices each holding at the latest close and reviews the
// result. Holdings that cannot be priced are reported and left out of the
// totals.
func (a *App) AnalyzePortfolio(ctx context.Context, holdings []models.Holding) (*models.PortfolioAnalysis, error) {
	if len(holdings) == 0 {
		return nil, ErrEmptyPortfolio
	}
	holdings = append([]models.Holding(nil), holdings...)
	for i := range holdings {
		holdings[i].Symbol = models.NormalizeSymbol(holdings[i].Symbol)
		if err := holdings[i].Validate(); err != nil {
			return nil, err
		}
	}

	prices := make(map[string]float64, len(holdings))
	for _, h := range holdings {
		if _, seen := prices[h.Symbol]; seen {
			continue
		}
		market := models.DetermineMarket(h.Symbol)
		snap, err := a.snapshots.GetSnapshot(ctx, h.Symbol, market, a.cfg.MarketData.DefaultPeriod, a.cfg.MarketData.DefaultInterval)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			observability.WithOperation(h.Symbol, string(market), "portfolio").Warn("holding could not be priced", "error", err)
			continue
		}
		prices[h.Symbol] = snap.CurrentPrice
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("%w: no holding could be priced", ErrNoStocksFound)
	}

	result := ValuePortfolio(holdings, prices)
	result.Timestamp = a.now().UTC()
	return &result, nil
}

// ValuePortfolio values holdings at prices. Weights are taken against the
// final portfolio value.
func ValuePortfolio(holdings []models.Holding, prices map[string]float64) models.PortfolioAnalysis {
	out := models.PortfolioAnalysis{
		TotalValue:      decimal.Zero,
		TotalCost:       decimal.Zero,
		Holdings:        make([]models.HoldingValuation, 0, len(holdings)),
		Recommendations: []string{},
		Rebalancing:     []string{},
	}

	for _, h := range holdings {
		price, ok := prices[h.Symbol]
		if !ok {
			out.Unpriced = append(out.Unpriced, h.Symbol)
			continue
		}
		v := models.NewHoldingValuation(h, price)
		out.TotalValue = out.TotalValue.Add(v.CurrentValue)
		out.TotalCost = out.TotalCost.Add(v.CostBasis)
		out.Holdings = append(out.Holdings, v)

		switch {
		case v.GainLossPercent > profitTakingPercent:
			out.Recommendations = append(out.Recommendations, fmt.Sprintf("Consider taking profits on %s (%+.1f%%)", h.Symbol, v.GainLossPercent))
		case v.GainLossPercent < reviewPercent:
			out.Recommendations = append(out.Recommendations, fmt.Sprintf("Review %s position (%+.1f%%)", h.Symbol, v.GainLossPercent))
		}
	}

	hundred := decimal.NewFromInt(100)
	if !out.TotalValue.IsZero() {
		for i := range out.Holdings {
			v := &out.Holdings[i]
			v.PortfolioPercent = v.CurrentValue.Div(out.TotalValue).Mul(hundred).InexactFloat64()
			if v.PortfolioPercent > concentrationLimit {
				out.Rebalancing = append(out.Rebalancing, fmt.Sprintf("Consider reducing %s allocation (%.1f%% of portfolio)", v.Symbol, v.PortfolioPercent))
			}
		}
	}

	out.TotalGainLoss = out.TotalValue.Sub(out.TotalCost)
	if !out.TotalCost.IsZero() {
		out.GainLossPercent = out.TotalGainLoss.Div(out.TotalCost).Mul(hundred).InexactFloat64()
	}

	if len(out.Recommendations) == 0 {
		out.Recommendations = append(out.Recommendations, "Portfolio performing within normal parameters")
	}
	if len(out.Rebalancing) == 0 {
		out.Rebalancing = append(out.Rebalancing, "Portfolio allocation appears balanced")
	}

	switch n := len(holdings); {
	case n < 5:
		out.RiskLevel = models.RiskHigh
		out.RiskAssessment = "Risk level: high - consider diversification"
	case n > 15:
		out.RiskLevel = models.RiskLow
		out.RiskAssessment = "Risk level: low - well diversified"
	default:
		out.RiskLevel = models.RiskModerate
		out.RiskAssessment = "Risk level: moderate"
	}
	return out
}
