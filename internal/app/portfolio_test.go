package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stock-analyst/models"
)

func TestValuePortfolio(t *testing.T) {
	holdings := []models.Holding{
		{Symbol: "AAPL", Quantity: 10, PurchasePrice: 100},
		{Symbol: "MSFT", Quantity: 5, PurchasePrice: 200},
		{Symbol: "TSLA", Quantity: 2, PurchasePrice: 250},
	}
	prices := map[string]float64{"AAPL": 150, "MSFT": 160, "TSLA": 250}

	got := ValuePortfolio(holdings, prices)

	if !got.TotalValue.Equal(decimalOf(2800)) || !got.TotalCost.Equal(decimalOf(2500)) {
		t.Errorf("totals = %s / %s, want 2800 / 2500", got.TotalValue, got.TotalCost)
	}
	if !got.TotalGainLoss.Equal(decimalOf(300)) || got.GainLossPercent != 12 {
		t.Errorf("gain = %s (%v%%)", got.TotalGainLoss, got.GainLossPercent)
	}

	wantRecs := []string{"Consider taking profits on AAPL (+50.0%)", "Review MSFT position (-20.0%)"}
	if strings.Join(got.Recommendations, "|") != strings.Join(wantRecs, "|") {
		t.Errorf("recommendations = %v", got.Recommendations)
	}
	// AAPL 1500/2800 = 53.6%, MSFT 800/2800 = 28.6%, TSLA 500/2800 = 17.9%
	if len(got.Rebalancing) != 1 || got.Rebalancing[0] != "Consider reducing AAPL allocation (53.6% of portfolio)" {
		t.Errorf("rebalancing = %v", got.Rebalancing)
	}
	if got.RiskLevel != models.RiskHigh || got.RiskAssessment != "Risk level: high - consider diversification" {
		t.Errorf("risk = %s / %s", got.RiskLevel, got.RiskAssessment)
	}
}

func TestValuePortfolio_Defaults(t *testing.T) {
	holdings := make([]models.Holding, 0, 6)
	prices := map[string]float64{}
	for _, s := range []string{"A", "B", "C", "D", "E", "F"} {
		holdings = append(holdings, models.Holding{Symbol: s, Quantity: 1, PurchasePrice: 10})
		prices[s] = 10
	}

	got := ValuePortfolio(holdings, prices)
	if got.Recommendations[0] != "Portfolio performing within normal parameters" {
		t.Errorf("recommendations = %v", got.Recommendations)
	}
	if got.Rebalancing[0] != "Portfolio allocation appears balanced" {
		t.Errorf("rebalancing = %v", got.Rebalancing)
	}
	if got.RiskLevel != models.RiskModerate {
		t.Errorf("risk = %s", got.RiskLevel)
	}
}

func TestValuePortfolio_RiskByHoldingCount(t *testing.T) {
	tests := []struct {
		n    int
		want models.RiskLevel
	}{
		{1, models.RiskHigh},
		{4, models.RiskHigh},
		{5, models.RiskModerate},
		{15, models.RiskModerate},
		{16, models.RiskLow},
	}
	for _, tt := range tests {
		holdings := make([]models.Holding, tt.n)
		for i := range holdings {
			holdings[i] = models.Holding{Symbol: "AAPL", Quantity: 1, PurchasePrice: 1}
		}
		got := ValuePortfolio(holdings, map[string]float64{"AAPL": 1})
		if got.RiskLevel != tt.want {
			t.Errorf("%d holdings: risk = %s, want %s", tt.n, got.RiskLevel, tt.want)
		}
	}
}

func TestValuePortfolio_Unpriced(t *testing.T) {
	holdings := []models.Holding{
		{Symbol: "AAPL", Quantity: 1, PurchasePrice: 100},
		{Symbol: "ZZZZ", Quantity: 1, PurchasePrice: 100},
	}
	got := ValuePortfolio(holdings, map[string]float64{"AAPL": 100})
	if len(got.Unpriced) != 1 || got.Unpriced[0] != "ZZZZ" {
		t.Errorf("unpriced = %v", got.Unpriced)
	}
	if len(got.Holdings) != 1 || got.Holdings[0].PortfolioPercent != 100 {
		t.Errorf("holdings = %+v", got.Holdings)
	}
}

func TestAnalyzePortfolio(t *testing.T) {
	snaps := &mockSnapshots{
		GetSnapshotFunc: func(ctx context.Context, symbol string, market models.Market, p, i string) (*models.StockSnapshot, error) {
			if symbol == "ZZZZ" {
				return nil, models.ErrNotFound
			}
			return &models.StockSnapshot{Symbol: symbol, CurrentPrice: 120}, nil
		},
	}
	a := testApp(snaps, nil)

	t.Run("empty", func(t *testing.T) {
		_, err := a.AnalyzePortfolio(context.Background(), nil)
		if !errors.Is(err, ErrEmptyPortfolio) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("invalid holding", func(t *testing.T) {
		_, err := a.AnalyzePortfolio(context.Background(), []models.Holding{{Symbol: "AAPL", Quantity: 0, PurchasePrice: 1}})
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("nothing priced", func(t *testing.T) {
		_, err := a.AnalyzePortfolio(context.Background(), []models.Holding{{Symbol: "zzzz", Quantity: 1, PurchasePrice: 1}})
		if !errors.Is(err, ErrNoStocksFound) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("priced", func(t *testing.T) {
		holdings := []models.Holding{
			{Symbol: "aapl", Quantity: 2, PurchasePrice: 100},
			{Symbol: "ZZZZ", Quantity: 1, PurchasePrice: 10},
		}
		got, err := a.AnalyzePortfolio(context.Background(), holdings)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.TotalValue.Equal(decimalOf(240)) {
			t.Errorf("total value = %s", got.TotalValue)
		}
		if got.Holdings[0].Symbol != "AAPL" || holdings[0].Symbol != "aapl" {
			t.Error("symbols are normalized without mutating the request")
		}
		if got.Timestamp.IsZero() {
			t.Error("timestamp should be set")
		}
	})
}
