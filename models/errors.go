package models

import "errors"

// Sentinel errors shared across the pipeline. Callers wrap them with %w and
// test with errors.Is.
var (
	// ErrNotFound means the upstream has no data for the symbol
	ErrNotFound = errors.New("symbol not found")

	// ErrUpstreamUnavailable covers network failures, timeouts, throttling
	// and open circuit breakers on the market data source
	ErrUpstreamUnavailable = errors.New("market data source unavailable")

	// ErrAnalysisFailed means the AI provider failed or returned output that
	// does not satisfy the analysis schema
	ErrAnalysisFailed = errors.New("analysis failed")

	// ErrInsufficientSymbols means a comparison was requested with fewer than
	// two symbols or mismatched inputs
	ErrInsufficientSymbols = errors.New("at least two symbols are required")

	// ErrValidation marks malformed request input
	ErrValidation = errors.New("validation error")

	// ErrQueueFull is returned when too many analyses are already running
	ErrQueueFull = errors.New("analysis queue full, too many concurrent requests - try again later")
)
