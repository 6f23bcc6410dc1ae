package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a position supplied for portfolio analysis
type Holding struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	PurchasePrice float64 `json:"purchase_price"`
}

// Validate checks the holding fields
func (h Holding) Validate() error {
	if h.Symbol == "" {
		return fmt.Errorf("%w: holding symbol is required", ErrValidation)
	}
	if h.Quantity <= 0 {
		return fmt.Errorf("%w: quantity for %s must be positive", ErrValidation, h.Symbol)
	}
	if h.PurchasePrice <= 0 {
		return fmt.Errorf("%w: purchase price for %s must be positive", ErrValidation, h.Symbol)
	}
	return nil
}

// HoldingValuation is a holding priced at the current market
type HoldingValuation struct {
	Symbol           string          `json:"symbol"`
	Quantity         decimal.Decimal `json:"quantity"`
	PurchasePrice    decimal.Decimal `json:"purchase_price"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	CostBasis        decimal.Decimal `json:"cost_basis"`
	CurrentValue     decimal.Decimal `json:"current_value"`
	GainLoss         decimal.Decimal `json:"gain_loss"`
	GainLossPercent  float64         `json:"gain_loss_percent"`
	PortfolioPercent float64         `json:"portfolio_percent"`
}

// NewHoldingValuation prices a holding at currentPrice
func NewHoldingValuation(h Holding, currentPrice float64) HoldingValuation {
	qty := decimal.NewFromFloat(h.Quantity)
	purchase := decimal.NewFromFloat(h.PurchasePrice)
	current := decimal.NewFromFloat(currentPrice)

	cost := qty.Mul(purchase)
	value := qty.Mul(current)
	gain := value.Sub(cost)

	var pct float64
	if !cost.IsZero() {
		pct = gain.Div(cost).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}

	return HoldingValuation{
		Symbol:          h.Symbol,
		Quantity:        qty,
		PurchasePrice:   purchase,
		CurrentPrice:    current,
		CostBasis:       cost,
		CurrentValue:    value,
		GainLoss:        gain,
		GainLossPercent: pct,
	}
}

// RiskLevel summarizes portfolio concentration
type RiskLevel string

const (
	RiskHigh     RiskLevel = "high"
	RiskModerate RiskLevel = "moderate"
	RiskLow      RiskLevel = "low"
)

// PortfolioAnalysis is the valuation and review of a set of holdings
type PortfolioAnalysis struct {
	TotalValue      decimal.Decimal    `json:"total_value"`
	TotalCost       decimal.Decimal    `json:"total_cost"`
	TotalGainLoss   decimal.Decimal    `json:"total_gain_loss"`
	GainLossPercent float64            `json:"total_gain_loss_percent"`
	Holdings        []HoldingValuation `json:"holdings"`
	Recommendations []string           `json:"recommendations"`
	Rebalancing     []string           `json:"rebalancing_suggestions"`
	RiskLevel       RiskLevel          `json:"risk_level"`
	RiskAssessment  string             `json:"risk_assessment"`
	Unpriced        []string           `json:"unpriced_symbols,omitempty"`
	Timestamp       time.Time          `json:"timestamp"`
}
