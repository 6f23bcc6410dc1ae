package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stock-analyst/models"

	"github.com/sony/gobreaker/v2"
)

var fastRetry = RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}

func TestWithRetry(t *testing.T) {
	transient := fmt.Errorf("overview 503: %w", models.ErrUpstreamUnavailable)

	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{"first try", 0, nil, 1, false},
		{"recovers on third call", 2, transient, 3, false},
		{"exhausts retries", 10, transient, 4, true},
		{"not found is permanent", 10, fmt.Errorf("overview: %w", models.ErrNotFound), 1, true},
		{"validation is permanent", 10, models.ErrValidation, 1, true},
		{"open breaker is permanent", 10, fmt.Errorf("alphavantage: %w", gobreaker.ErrOpenState), 1, true},
		{"half-open breaker is permanent", 10, gobreaker.ErrTooManyRequests, 1, true},
		{"deadline is permanent", 10, context.DeadlineExceeded, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), fastRetry, func() error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, tt.err) {
				t.Errorf("error %v should wrap %v", err, tt.err)
			}
		})
	}
}

func TestWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := RetryConfig{MaxRetries: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour}

	calls := 0
	err := WithRetry(ctx, config, func() error {
		calls++
		cancel()
		return errors.New("connection reset")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	config := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := config.backoff(i + 1); got != w {
			t.Errorf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestWithRetry_WaitsBetweenAttempts(t *testing.T) {
	config := RetryConfig{MaxRetries: 2, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 20 * time.Millisecond}

	start := time.Now()
	_ = WithRetry(context.Background(), config, func() error { return errors.New("fail") })

	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 30ms of backoff", elapsed)
	}
}
