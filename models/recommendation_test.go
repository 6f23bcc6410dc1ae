package models

import (
	"strings"
	"testing"
)

func validAnalysis() *AnalysisResult {
	return &AnalysisResult{
		Symbol:          "AAPL",
		Market:          MarketUS,
		Recommendation:  RecommendationBuy,
		ConfidenceScore: 0.8,
		TargetPrice:     210,
		Summary:         "Solid momentum with reasonable valuation.",
		KeyPoints: []KeyPoint{
			{Category: CategoryTechnical, Point: "Price above SMA20", Sentiment: SentimentPositive},
		},
		PriceTargets: PriceTargets{Bearish: 170, Neutral: 195, Bullish: 220},
	}
}

func TestAnalysisResult_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *AnalysisResult)
		wantErr bool
	}{
		{"valid", func(a *AnalysisResult) {}, false},
		{"bad recommendation", func(a *AnalysisResult) { a.Recommendation = "STRONG_BUY" }, true},
		{"confidence above one", func(a *AnalysisResult) { a.ConfidenceScore = 1.2 }, true},
		{"confidence negative", func(a *AnalysisResult) { a.ConfidenceScore = -0.1 }, true},
		{"zero target", func(a *AnalysisResult) { a.TargetPrice = 0 }, true},
		{"empty summary", func(a *AnalysisResult) { a.Summary = "" }, true},
		{"long summary", func(a *AnalysisResult) { a.Summary = strings.Repeat("x", 501) }, true},
		{"summary at limit", func(a *AnalysisResult) { a.Summary = strings.Repeat("x", 500) }, false},
		{"too many key points", func(a *AnalysisResult) {
			a.KeyPoints = make([]KeyPoint, 11)
			for i := range a.KeyPoints {
				a.KeyPoints[i] = KeyPoint{Category: CategoryMarket, Point: "p", Sentiment: SentimentNeutral}
			}
		}, true},
		{"bad category", func(a *AnalysisResult) { a.KeyPoints[0].Category = "macro" }, true},
		{"bad sentiment", func(a *AnalysisResult) { a.KeyPoints[0].Sentiment = "mixed" }, true},
		{"long key point", func(a *AnalysisResult) { a.KeyPoints[0].Point = strings.Repeat("y", 201) }, true},
		{"negative bearish target", func(a *AnalysisResult) { a.PriceTargets.Bearish = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAnalysis()
			tt.mutate(a)
			err := a.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDeriveRisksAndOpportunities(t *testing.T) {
	points := []KeyPoint{
		{Category: CategoryRisk, Point: "Regulatory exposure", Sentiment: SentimentNeutral},
		{Category: CategoryTechnical, Point: "RSI overbought", Sentiment: SentimentNegative},
		{Category: CategoryFundamental, Point: "Strong cash flow", Sentiment: SentimentPositive},
		{Category: CategoryMarket, Point: "Sector tailwinds", Sentiment: SentimentPositive},
		{Category: CategoryTechnical, Point: "Above SMA50", Sentiment: SentimentPositive},
		{Category: CategoryMarket, Point: "Flat volume", Sentiment: SentimentNeutral},
	}

	risks := DeriveRisks(points)
	if len(risks) != 2 || risks[0] != "Regulatory exposure" || risks[1] != "RSI overbought" {
		t.Errorf("unexpected risks: %v", risks)
	}

	opps := DeriveOpportunities(points)
	if len(opps) != 2 || opps[0] != "Strong cash flow" || opps[1] != "Sector tailwinds" {
		t.Errorf("unexpected opportunities: %v", opps)
	}

	if got := DeriveRisks(nil); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := SnapshotCacheKey("aapl", MarketUS, "1mo", "1d"); got != "data:US:AAPL:1mo:1d" {
		t.Errorf("SnapshotCacheKey = %q", got)
	}
	if got := AnalysisCacheKey(" aapl ", MarketUS); got != "analysis:US:AAPL" {
		t.Errorf("AnalysisCacheKey = %q", got)
	}
	if SnapshotCacheKey("AAPL", MarketUS, "1mo", "1d") != SnapshotCacheKey("aapl", MarketUS, "1mo", "1d") {
		t.Error("cache key should be deterministic across case")
	}
}

func TestMetadataMerge(t *testing.T) {
	name := "Apple Inc."
	cap1 := 3.0e12
	cap2 := 1.0
	pe := 28.5

	m := Metadata{CompanyName: &name, MarketCap: &cap1}
	m.Merge(Metadata{MarketCap: &cap2, PERatio: &pe})

	if *m.MarketCap != cap1 {
		t.Errorf("merge overwrote existing market cap: %v", *m.MarketCap)
	}
	if m.PERatio == nil || *m.PERatio != pe {
		t.Error("merge should fill missing PE ratio")
	}
	if m.Complete() {
		t.Error("metadata should not be complete")
	}
}

func TestNewHoldingValuation(t *testing.T) {
	v := NewHoldingValuation(Holding{Symbol: "AAPL", Quantity: 10, PurchasePrice: 100}, 125)

	if !v.CostBasis.Equal(v.PurchasePrice.Mul(v.Quantity)) {
		t.Errorf("cost basis = %s", v.CostBasis)
	}
	if v.CurrentValue.String() != "1250" {
		t.Errorf("current value = %s, want 1250", v.CurrentValue)
	}
	if v.GainLoss.String() != "250" {
		t.Errorf("gain = %s, want 250", v.GainLoss)
	}
	if v.GainLossPercent != 25 {
		t.Errorf("gain percent = %v, want 25", v.GainLossPercent)
	}
}
