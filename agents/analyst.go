package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stock-analyst/models"
	"stock-analyst/observability"
	"stock-analyst/repository"
	"stock-analyst/services"
)

const (
	cachedAnalysisMessage = "This analysis was retrieved from cache"
	freshAnalysisMessage  = "This analysis was freshly generated using AI"

	// DefaultTemperature and DefaultMaxTokens apply to analysis completions
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 2000
)

var errInvalidOutput = errors.New("invalid model output")

// analysisOutput is the structured completion payload
type analysisOutput struct {
	Recommendation  models.Recommendation `json:"recommendation"`
	ConfidenceScore float64               `json:"confidence_score"`
	TargetPrice     float64               `json:"target_price"`
	AnalysisSummary string                `json:"analysis_summary"`
	KeyPoints       []models.KeyPoint     `json:"key_points"`
	PriceTargets    models.PriceTargets   `json:"price_targets"`
}

// AnalystHealth reports the analyst's dependencies
type AnalystHealth struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	CacheAvailable bool   `json:"cache_available"`
	CacheChecked   bool   `json:"cache_status_cached"`
}

// Analyst produces cached AI analyses of snapshots
type Analyst struct {
	completer   Completer
	cache       CacheStore
	usage       *UsageTracker
	health      *HealthCache
	ttl         time.Duration
	temperature float64
	maxTokens   int
	now         func() time.Time
}

// AnalystOption configures an Analyst
type AnalystOption func(*Analyst)

// WithTemperature overrides the sampling temperature
func WithTemperature(t float64) AnalystOption {
	return func(a *Analyst) { a.temperature = t }
}

// WithMaxTokens overrides the completion token limit
func WithMaxTokens(n int) AnalystOption {
	return func(a *Analyst) { a.maxTokens = n }
}

// WithHealthCache sets the cache used for dependency probes
func WithHealthCache(h *HealthCache) AnalystOption {
	return func(a *Analyst) { a.health = h }
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) AnalystOption {
	return func(a *Analyst) { a.now = now }
}

// NewAnalyst creates a new Analyst
func NewAnalyst(completer Completer, cache CacheStore, usage *UsageTracker, ttl time.Duration, opts ...AnalystOption) *Analyst {
	a := &Analyst{
		completer:   completer,
		cache:       cache,
		usage:       usage,
		health:      NewHealthCache(DefaultHealthCacheTTL),
		ttl:         ttl,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Usage returns the tracker the analyst records into
func (a *Analyst) Usage() *UsageTracker {
	return a.usage
}

// Cached returns the cached analysis for symbol without any provider call
func (a *Analyst) Cached(ctx context.Context, symbol string, market models.Market) (*models.AnalysisResult, bool) {
	key := models.AnalysisCacheKey(symbol, market)
	var result models.AnalysisResult
	if a.cache.Get(ctx, key, &result) != repository.LookupHit {
		return nil, false
	}

	var zeroTokens int64
	var zeroCost float64
	result.Usage = models.Usage{}
	result.CacheInfo = &models.CacheInfo{
		IsCached:   true,
		CacheKey:   key,
		Message:    cachedAnalysisMessage,
		TokensUsed: &zeroTokens,
		CostUSD:    &zeroCost,
	}
	observability.WithOperation(models.NormalizeSymbol(symbol), string(market), "analyze").
		Info("using cached analysis, no tokens used")
	return &result, true
}

// Analyze returns the analysis for symbol, calling the provider only on a
// cache miss. Every failure wraps models.ErrAnalysisFailed, and provider
// outages also keep models.ErrUpstreamUnavailable. No partial result is ever
// returned or cached.
func (a *Analyst) Analyze(ctx context.Context, symbol string, market models.Market, snap *models.StockSnapshot) (*models.AnalysisResult, error) {
	metrics := observability.GetMetrics()
	if cached, ok := a.Cached(ctx, symbol, market); ok {
		metrics.RecordAnalysisRequest(string(market), "hit")
		return cached, nil
	}
	metrics.RecordAnalysisRequest(string(market), "miss")

	symbol = models.NormalizeSymbol(symbol)
	key := models.AnalysisCacheKey(symbol, market)
	log := observability.WithOperation(symbol, string(market), "analyze")
	timer := metrics.NewTimer()

	result, err := a.generate(ctx, symbol, market, snap)
	if err != nil {
		timer.ObserveAnalysis(string(market), "error")
		metrics.RecordAnalysisError(string(market), analysisErrorType(err))
		log.Error("analysis failed", "error", err)
		return nil, fmt.Errorf("%w: analysis of %s: %w", models.ErrAnalysisFailed, symbol, err)
	}
	timer.ObserveAnalysis(string(market), "success")
	metrics.RecordRecommendation(string(result.Recommendation), result.ConfidenceScore)

	if !a.cache.Set(ctx, key, result, a.ttl) {
		log.Debug("analysis not cached", "key", key)
	}

	tokens := result.Usage.TotalTokens
	cost := result.Usage.CostUSD
	out := *result
	out.CacheInfo = &models.CacheInfo{
		IsCached:   false,
		CacheKey:   key,
		Message:    freshAnalysisMessage,
		TokensUsed: &tokens,
		CostUSD:    &cost,
	}
	return &out, nil
}

func (a *Analyst) generate(ctx context.Context, symbol string, market models.Market, snap *models.StockSnapshot) (*models.AnalysisResult, error) {
	if snap == nil || len(snap.History) == 0 {
		return nil, errors.New("no market data to analyze")
	}

	completion, err := a.completer.Complete(ctx, services.CompletionRequest{
		System:      SystemPrompt(market),
		User:        BuildAnalysisPrompt(snap),
		Schema:      AnalysisSchema,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return nil, err
	}
	usage := a.usage.Record("stock_analysis", symbol, completion)
	if strings.TrimSpace(completion.Content) == "" {
		return nil, fmt.Errorf("%w: empty response", errInvalidOutput)
	}

	var out analysisOutput
	if err := json.Unmarshal([]byte(completion.Content), &out); err != nil {
		return nil, fmt.Errorf("%w: unparseable: %w", errInvalidOutput, err)
	}

	keyPoints := out.KeyPoints
	if keyPoints == nil {
		keyPoints = []models.KeyPoint{}
	}
	result := &models.AnalysisResult{
		Symbol:          symbol,
		Market:          market,
		Timestamp:       a.now().UTC(),
		Recommendation:  out.Recommendation,
		ConfidenceScore: out.ConfidenceScore,
		TargetPrice:     out.TargetPrice,
		Summary:         out.AnalysisSummary,
		KeyPoints:       keyPoints,
		PriceTargets:    out.PriceTargets,
		Risks:           models.DeriveRisks(keyPoints),
		Opportunities:   models.DeriveOpportunities(keyPoints),
		Usage:           usage,
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidOutput, err)
	}
	return result, nil
}

// ClearCache deletes every cached analysis and reports how many went
func (a *Analyst) ClearCache(ctx context.Context) (int64, bool) {
	n, ok := a.cache.DeletePrefix(ctx, models.AnalysisKeyPrefix)
	if ok {
		observability.Info("analysis cache cleared", "keys_cleared", n)
	}
	return n, ok
}

// Health probes the cache through the health cache and reports the provider
func (a *Analyst) Health(ctx context.Context) AnalystHealth {
	available, cached := a.health.Check(ctx, a.cache.Ping)
	h := AnalystHealth{CacheAvailable: available, CacheChecked: cached}
	if a.completer != nil {
		h.Provider = a.completer.Provider()
		h.Model = a.completer.Model()
	}
	return h
}

func analysisErrorType(err error) string {
	switch {
	case errors.Is(err, errInvalidOutput):
		return "invalid_output"
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return "provider_unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "provider_error"
	}
}
