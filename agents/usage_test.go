package agents

import (
	"sync"
	"testing"

	"stock-analyst/services"
)

func TestUsageTracker_Record(t *testing.T) {
	tracker := NewUsageTracker("gpt-4o-mini")

	usage := tracker.Record("stock_analysis", "AAPL", &services.Completion{
		Model:            "gpt-4o-mini",
		PromptTokens:     1000,
		CompletionTokens: 500,
	})

	if usage.TotalTokens != 1500 {
		t.Errorf("total tokens = %d, want 1500", usage.TotalTokens)
	}
	if usage.CostUSD != 0.00045 {
		t.Errorf("cost = %v, want 0.00045", usage.CostUSD)
	}

	stats := tracker.Stats()
	if stats.Calls != 1 || stats.TotalTokensUsed != 1500 || stats.TotalCostUSD != 0.00045 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.CostPer1KTokens.Input != 0.00015 || stats.CostPer1KTokens.Output != 0.0006 {
		t.Errorf("rate per 1k = %+v", stats.CostPer1KTokens)
	}
}

func TestUsageTracker_EmptyModelUsesDefault(t *testing.T) {
	tracker := NewUsageTracker("gpt-4o-mini")
	usage := tracker.Record("stock_comparison", "AAPL, MSFT", &services.Completion{PromptTokens: 1_000_000})
	if usage.CostUSD != 0.15 {
		t.Errorf("cost = %v, want 0.15", usage.CostUSD)
	}
}

func TestUsageTracker_Reset(t *testing.T) {
	tracker := NewUsageTracker("gpt-4o-mini")
	tracker.Record("stock_analysis", "AAPL", &services.Completion{PromptTokens: 10, CompletionTokens: 5})
	before := tracker.Stats()

	prev := tracker.Reset()
	if prev.SessionID != before.SessionID || prev.TotalTokensUsed != 15 {
		t.Errorf("previous = %+v", prev)
	}

	after := tracker.Stats()
	if after.SessionID == before.SessionID {
		t.Error("reset should start a new session")
	}
	if after.Calls != 0 || after.TotalTokensUsed != 0 || after.TotalCostUSD != 0 {
		t.Errorf("after reset = %+v", after)
	}
}

func TestUsageTracker_ConcurrentRecord(t *testing.T) {
	tracker := NewUsageTracker("gpt-4o-mini")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Record("stock_analysis", "AAPL", &services.Completion{PromptTokens: 2, CompletionTokens: 1})
		}()
	}
	wg.Wait()

	stats := tracker.Stats()
	if stats.Calls != 50 || stats.PromptTokens != 100 || stats.CompletionTokens != 50 {
		t.Errorf("stats = %+v", stats)
	}
}
