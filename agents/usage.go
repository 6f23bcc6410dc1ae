package agents

import (
	"sync"
	"time"

	"stock-analyst/models"
	"stock-analyst/observability"
	"stock-analyst/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UsageStats is a snapshot of the token accounting for one session
type UsageStats struct {
	SessionID        uuid.UUID `json:"session_id"`
	SessionStart     time.Time `json:"session_start"`
	Model            string    `json:"model"`
	Calls            int64     `json:"calls"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	TotalTokensUsed  int64     `json:"total_tokens_used"`
	TotalCostUSD     float64   `json:"total_cost_usd"`
	CostPer1KTokens  CostPer1K `json:"cost_per_1k_tokens"`
}

// CostPer1K is the provider rate expressed per thousand tokens
type CostPer1K struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// UsageTracker accumulates token usage and cost across analyses and
// comparisons. All counters move together under one lock.
type UsageTracker struct {
	mu               sync.Mutex
	model            string
	sessionID        uuid.UUID
	started          time.Time
	calls            int64
	promptTokens     int64
	completionTokens int64
	cost             decimal.Decimal
	now              func() time.Time
}

// NewUsageTracker starts a session for the given default model
func NewUsageTracker(model string) *UsageTracker {
	t := &UsageTracker{model: model, now: time.Now}
	t.sessionID = uuid.New()
	t.started = t.now().UTC()
	return t
}

// Record adds one completion to the session totals and returns its usage
func (t *UsageTracker) Record(operation, subject string, c *services.Completion) models.Usage {
	model := c.Model
	if model == "" {
		model = t.model
	}
	cost := services.Cost(model, c.PromptTokens, c.CompletionTokens)
	costUSD := cost.InexactFloat64()

	t.mu.Lock()
	t.calls++
	t.promptTokens += c.PromptTokens
	t.completionTokens += c.CompletionTokens
	t.cost = t.cost.Add(cost)
	sessionTokens := t.promptTokens + t.completionTokens
	sessionCost := t.cost.Round(6).InexactFloat64()
	t.mu.Unlock()

	observability.GetMetrics().RecordTokenUsage(model, c.PromptTokens, c.CompletionTokens, costUSD)
	observability.Info("token usage",
		"operation", operation,
		"subject", subject,
		"model", model,
		"prompt_tokens", c.PromptTokens,
		"completion_tokens", c.CompletionTokens,
		"total_tokens", c.TotalTokens(),
		"estimated_cost_usd", cost.Round(6).String(),
		"session_total_tokens", sessionTokens,
		"session_total_cost_usd", sessionCost)

	return models.Usage{
		PromptTokens:     c.PromptTokens,
		CompletionTokens: c.CompletionTokens,
		TotalTokens:      c.TotalTokens(),
		CostUSD:          costUSD,
	}
}

// Stats returns the current session totals
func (t *UsageTracker) Stats() UsageStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statsLocked()
}

// Reset starts a new session and returns the totals of the previous one
func (t *UsageTracker) Reset() UsageStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.statsLocked()
	t.sessionID = uuid.New()
	t.started = t.now().UTC()
	t.calls = 0
	t.promptTokens = 0
	t.completionTokens = 0
	t.cost = decimal.Zero
	observability.Info("token usage statistics reset", "previous_session", prev.SessionID, "previous_cost_usd", prev.TotalCostUSD)
	return prev
}

func (t *UsageTracker) statsLocked() UsageStats {
	rate := services.RateFor(t.model)
	thousand := decimal.NewFromInt(1000)
	return UsageStats{
		SessionID:        t.sessionID,
		SessionStart:     t.started,
		Model:            t.model,
		Calls:            t.calls,
		PromptTokens:     t.promptTokens,
		CompletionTokens: t.completionTokens,
		TotalTokensUsed:  t.promptTokens + t.completionTokens,
		TotalCostUSD:     t.cost.Round(6).InexactFloat64(),
		CostPer1KTokens: CostPer1K{
			Input:  rate.InputPerMillion.Div(thousand).InexactFloat64(),
			Output: rate.OutputPerMillion.Div(thousand).InexactFloat64(),
		},
	}
}
