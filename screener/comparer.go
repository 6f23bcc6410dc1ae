package screener

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stock-analyst/agents"
	"stock-analyst/models"
	"stock-analyst/observability"
	"stock-analyst/services"

	"github.com/google/uuid"
)

const (
	comparisonSystemPrompt = "You are a professional stock analyst providing comparative analysis."
	fallbackReasoning      = "Analysis completed"

	// DefaultComparisonMaxTokens bounds the narrative completion
	DefaultComparisonMaxTokens = 1500
	comparisonTemperature      = 0.3
)

// Comparer ranks snapshots and asks the model for a comparative narrative
type Comparer struct {
	completer agents.Completer
	usage     *agents.UsageTracker
	maxTokens int
	now       func() time.Time
}

// NewComparer creates a new Comparer. A nil completer skips the narrative.
func NewComparer(completer agents.Completer, usage *agents.UsageTracker, maxTokens int) *Comparer {
	if maxTokens <= 0 {
		maxTokens = DefaultComparisonMaxTokens
	}
	return &Comparer{
		completer: completer,
		usage:     usage,
		maxTokens: maxTokens,
		now:       time.Now,
	}
}

// Compare scores each snapshot, ranks them and picks the winner.
// symbols and snapshots are parallel slices of at least two entries.
func (c *Comparer) Compare(ctx context.Context, symbols []string, snapshots []*models.StockSnapshot) (*models.ComparisonResult, error) {
	if len(symbols) != len(snapshots) || len(symbols) < 2 {
		return nil, fmt.Errorf("%w: got %d symbols and %d snapshots", models.ErrInsufficientSymbols, len(symbols), len(snapshots))
	}
	for i, snap := range snapshots {
		if snap == nil {
			return nil, fmt.Errorf("%w: missing data for %s", models.ErrInsufficientSymbols, symbols[i])
		}
	}

	scored := make([]models.ScoredSymbol, len(symbols))
	for i, snap := range snapshots {
		card := Score(snap)
		scored[i] = models.ScoredSymbol{
			Symbol:     symbols[i],
			Score:      card.Score,
			Strengths:  card.Strengths,
			Weaknesses: card.Weaknesses,
		}
	}
	ranked := Rank(scored)

	result := &models.ComparisonResult{
		ID:         uuid.New(),
		Symbols:    symbols,
		Comparison: ranked,
		Winner:     ranked[0].Symbol,
		Reasoning:  []string{fallbackReasoning},
		Timestamp:  c.now().UTC(),
	}

	narrative, usage, err := c.narrate(ctx, symbols, snapshots)
	if err != nil {
		observability.Warn("comparison narrative failed, returning ranking only",
			"symbols", strings.Join(symbols, ", "),
			"operation", "compare",
			"error", err)
	} else if narrative != "" {
		result.Reasoning = []string{narrative}
	}
	result.Usage = usage
	status := "generated"
	if result.Reasoning[0] == fallbackReasoning {
		status = "degraded"
	}
	observability.GetMetrics().RecordComparison(status)

	observability.Info("comparison completed",
		"symbols", strings.Join(symbols, ", "),
		"winner", result.Winner,
		"winner_score", ranked[0].Score)
	return result, nil
}

func (c *Comparer) narrate(ctx context.Context, symbols []string, snapshots []*models.StockSnapshot) (string, models.Usage, error) {
	if c.completer == nil {
		return "", models.Usage{}, fmt.Errorf("no AI provider configured")
	}
	completion, err := c.completer.Complete(ctx, services.CompletionRequest{
		System:      comparisonSystemPrompt,
		User:        BuildComparisonPrompt(symbols, snapshots),
		Temperature: comparisonTemperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", models.Usage{}, err
	}
	usage := c.usage.Record("stock_comparison", strings.Join(symbols, ", "), completion)
	return strings.TrimSpace(completion.Content), usage, nil
}

// BuildComparisonPrompt lists every symbol's headline figures
func BuildComparisonPrompt(symbols []string, snapshots []*models.StockSnapshot) string {
	var b strings.Builder
	b.WriteString("Compare the following stocks and determine which one offers the best investment opportunity:\n")
	for i, snap := range snapshots {
		fmt.Fprintf(&b, "\n%s (%s):\n", symbols[i], snap.CompanyName)
		fmt.Fprintf(&b, "- Price: $%.2f (%+.2f%%)\n", snap.CurrentPrice, snap.ChangePercent)
		fmt.Fprintf(&b, "- Market Cap: %s\n", formatOptional(snap.MarketCap, "$%.0f"))
		fmt.Fprintf(&b, "- P/E Ratio: %s\n", formatOptional(snap.PERatio, "%.2f"))
		fmt.Fprintf(&b, "- RSI: %s\n", formatOptional(snap.Indicators.RSI, "%.2f"))
		fmt.Fprintf(&b, "- Volume: %d\n", snap.Volume)
	}
	b.WriteString("\nProvide:\n")
	b.WriteString("1. A score (0-10) for each stock based on technical and fundamental factors\n")
	b.WriteString("2. Key strengths and weaknesses for each\n")
	b.WriteString("3. Your top recommendation with clear reasoning\n")
	b.WriteString("4. Consider factors like valuation, momentum, risk, and growth potential\n")
	return b.String()
}

func formatOptional(v *float64, format string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf(format, *v)
}
