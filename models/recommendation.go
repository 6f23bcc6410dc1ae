package models

import (
	"fmt"
	"time"
)

// Recommendation is the investment call produced by an analysis
type Recommendation string

const (
	RecommendationBuy  Recommendation = "BUY"
	RecommendationHold Recommendation = "HOLD"
	RecommendationSell Recommendation = "SELL"
)

// IsValid reports whether r is a known recommendation
func (r Recommendation) IsValid() bool {
	return r == RecommendationBuy || r == RecommendationHold || r == RecommendationSell
}

// KeyPointCategory classifies a key point
type KeyPointCategory string

const (
	CategoryTechnical   KeyPointCategory = "technical"
	CategoryFundamental KeyPointCategory = "fundamental"
	CategoryMarket      KeyPointCategory = "market"
	CategoryRisk        KeyPointCategory = "risk"
)

// IsValid reports whether c is a known category
func (c KeyPointCategory) IsValid() bool {
	switch c {
	case CategoryTechnical, CategoryFundamental, CategoryMarket, CategoryRisk:
		return true
	}
	return false
}

// Sentiment is the tone of a key point
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// IsValid reports whether s is a known sentiment
func (s Sentiment) IsValid() bool {
	return s == SentimentPositive || s == SentimentNegative || s == SentimentNeutral
}

// Limits on structured analysis output
const (
	MaxSummaryLength  = 500
	MaxKeyPoints      = 10
	MaxKeyPointLength = 200
)

// KeyPoint is one categorized observation from an analysis
type KeyPoint struct {
	Category  KeyPointCategory `json:"category"`
	Point     string           `json:"point"`
	Sentiment Sentiment        `json:"sentiment"`
}

// PriceTargets holds scenario price targets
type PriceTargets struct {
	Bearish float64 `json:"bearish"`
	Neutral float64 `json:"neutral"`
	Bullish float64 `json:"bullish"`
}

// Usage records token consumption and cost for one model call
type Usage struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// AnalysisResult is the AI generated analysis of a snapshot
type AnalysisResult struct {
	Symbol          string         `json:"symbol"`
	Market          Market         `json:"market"`
	Timestamp       time.Time      `json:"analysis_timestamp"`
	Recommendation  Recommendation `json:"recommendation"`
	ConfidenceScore float64        `json:"confidence_score"`
	TargetPrice     float64        `json:"target_price"`
	Summary         string         `json:"analysis_summary"`
	KeyPoints       []KeyPoint     `json:"key_points"`
	PriceTargets    PriceTargets   `json:"price_targets"`
	Risks           []string       `json:"risks"`
	Opportunities   []string       `json:"opportunities"`
	Usage           Usage          `json:"usage"`
	CacheInfo       *CacheInfo     `json:"cache_info,omitempty"`
}

// Validate checks the structured output constraints
func (a *AnalysisResult) Validate() error {
	if !a.Recommendation.IsValid() {
		return fmt.Errorf("invalid recommendation %q", a.Recommendation)
	}
	if a.ConfidenceScore < 0 || a.ConfidenceScore > 1 {
		return fmt.Errorf("confidence score %v out of range [0,1]", a.ConfidenceScore)
	}
	if a.TargetPrice <= 0 {
		return fmt.Errorf("target price must be positive, got %v", a.TargetPrice)
	}
	if a.Summary == "" {
		return fmt.Errorf("analysis summary is empty")
	}
	if len([]rune(a.Summary)) > MaxSummaryLength {
		return fmt.Errorf("analysis summary exceeds %d characters", MaxSummaryLength)
	}
	if len(a.KeyPoints) > MaxKeyPoints {
		return fmt.Errorf("too many key points: %d", len(a.KeyPoints))
	}
	for i, kp := range a.KeyPoints {
		if !kp.Category.IsValid() {
			return fmt.Errorf("key point %d: invalid category %q", i, kp.Category)
		}
		if !kp.Sentiment.IsValid() {
			return fmt.Errorf("key point %d: invalid sentiment %q", i, kp.Sentiment)
		}
		if len([]rune(kp.Point)) > MaxKeyPointLength {
			return fmt.Errorf("key point %d exceeds %d characters", i, MaxKeyPointLength)
		}
	}
	pt := a.PriceTargets
	if pt.Bearish <= 0 || pt.Neutral <= 0 || pt.Bullish <= 0 {
		return fmt.Errorf("price targets must be positive")
	}
	return nil
}

// DeriveRisks returns the key points flagged as risk or negative
func DeriveRisks(points []KeyPoint) []string {
	risks := make([]string, 0)
	for _, kp := range points {
		if kp.Category == CategoryRisk || kp.Sentiment == SentimentNegative {
			risks = append(risks, kp.Point)
		}
	}
	return risks
}

// DeriveOpportunities returns positive fundamental and market key points
func DeriveOpportunities(points []KeyPoint) []string {
	opps := make([]string, 0)
	for _, kp := range points {
		if (kp.Category == CategoryFundamental || kp.Category == CategoryMarket) &&
			kp.Sentiment == SentimentPositive {
			opps = append(opps, kp.Point)
		}
	}
	return opps
}

// AnalysisCacheKey builds the cache key for an analysis
func AnalysisCacheKey(symbol string, market Market) string {
	return fmt.Sprintf("analysis:%s:%s", market, NormalizeSymbol(symbol))
}
