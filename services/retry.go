package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock-analyst/models"
	"stock-analyst/observability"

	"github.com/sony/gobreaker/v2"
)

// RetryConfig controls exponential backoff for WithRetry
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// backoff returns the wait before retry n (1-based), doubling from
// InitialBackoff and capped at MaxBackoff
func (c RetryConfig) backoff(n int) time.Duration {
	d := c.InitialBackoff
	for i := 1; i < n && d < c.MaxBackoff; i++ {
		d *= 2
	}
	if d > c.MaxBackoff {
		d = c.MaxBackoff
	}
	return d
}

// WithRetry calls fn until it succeeds, the retries run out or the error is
// permanent. Missing symbols, open breakers and context errors are returned
// immediately.
func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
		if attempt == config.MaxRetries {
			return fmt.Errorf("failed after %d retries: %w", config.MaxRetries, err)
		}

		wait := config.backoff(attempt + 1)
		observability.Warn("upstream call failed, retrying",
			"attempt", attempt+1,
			"max_retries", config.MaxRetries,
			"backoff", wait,
			"error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrValidation),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
