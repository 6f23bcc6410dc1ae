package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"stock-analyst/models"
	"stock-analyst/observability"
)

// Circuit breaker names, one per upstream
const (
	BreakerYahoo        = "yahoo"
	BreakerAlphaVantage = "alphavantage"
	BreakerOpenAI       = "openai"
	BreakerBedrock      = "bedrock"
	BreakerAnthropic    = "anthropic"
	BreakerGemini       = "gemini"
)

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // closed-state window after which counts reset
	Timeout      time.Duration // how long the breaker stays open
	MinRequests  uint32        // requests in the window before the ratio is considered
	FailureRatio float64       // failures/requests at which the breaker opens
}

// DefaultCircuitBreakerConfig trips after half of at least five requests fail
var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests:  5,
	Interval:     time.Minute,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.5,
}

// CircuitBreakerRegistry lazily creates one breaker per upstream name
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	config   CircuitBreakerConfig
}

// NewCircuitBreakerRegistry creates a new registry with the given config
func NewCircuitBreakerRegistry(config CircuitBreakerConfig) *CircuitBreakerRegistry {
	if config.MinRequests == 0 {
		config.MinRequests = DefaultCircuitBreakerConfig.MinRequests
	}
	if config.FailureRatio <= 0 {
		config.FailureRatio = DefaultCircuitBreakerConfig.FailureRatio
	}
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		config:   config,
	}
}

func (r *CircuitBreakerRegistry) breaker(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:          name,
		MaxRequests:   r.config.MaxRequests,
		Interval:      r.config.Interval,
		Timeout:       r.config.Timeout,
		ReadyToTrip:   r.readyToTrip,
		IsSuccessful:  healthyOutcome,
		OnStateChange: onStateChange,
	})
	r.breakers[name] = cb
	return cb
}

func (r *CircuitBreakerRegistry) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < r.config.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= r.config.FailureRatio
}

// healthyOutcome treats a missing symbol or a caller giving up as success;
// neither says anything about upstream health
func healthyOutcome(err error) bool {
	return err == nil ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, context.Canceled)
}

func onStateChange(name string, from, to gobreaker.State) {
	observability.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())

	metrics := observability.GetMetrics()
	metrics.SetCircuitBreakerState(name, stateGauge(to))
	if to == gobreaker.StateOpen {
		metrics.RecordCircuitBreakerTrip(name)
	}
}

// stateGauge maps a breaker state onto the gauge value: 0 closed, 1
// half-open, 2 open
func stateGauge(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Execute runs fn through the named breaker. Rejections by an open or
// saturated half-open breaker wrap models.ErrUpstreamUnavailable.
func (r *CircuitBreakerRegistry) Execute(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	result, err := r.breaker(name).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		observability.Warn("circuit breaker open, rejecting request", "breaker", name)
		return nil, fmt.Errorf("%s circuit open: %w: %w", name, gobreaker.ErrOpenState, models.ErrUpstreamUnavailable)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.Warn("circuit breaker half-open, rejecting request", "breaker", name)
		return nil, fmt.Errorf("%s circuit half-open: %w: %w", name, gobreaker.ErrTooManyRequests, models.ErrUpstreamUnavailable)
	}
	return result, err
}

// CircuitBreakerStatus is the health view of one breaker
type CircuitBreakerStatus struct {
	Name             string `json:"name"`
	State            string `json:"state"`
	Requests         uint32 `json:"requests"`
	TotalSuccesses   uint32 `json:"total_successes"`
	TotalFailures    uint32 `json:"total_failures"`
	ConsecutiveSucc  uint32 `json:"consecutive_successes"`
	ConsecutiveFails uint32 `json:"consecutive_failures"`
}

// Status returns the state of every breaker used so far
func (r *CircuitBreakerRegistry) Status() map[string]CircuitBreakerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := make(map[string]CircuitBreakerStatus, len(r.breakers))
	for name, cb := range r.breakers {
		c := cb.Counts()
		status[name] = CircuitBreakerStatus{
			Name:             name,
			State:            cb.State().String(),
			Requests:         c.Requests,
			TotalSuccesses:   c.TotalSuccesses,
			TotalFailures:    c.TotalFailures,
			ConsecutiveSucc:  c.ConsecutiveSuccesses,
			ConsecutiveFails: c.ConsecutiveFailures,
		}
	}
	return status
}

// OpenBreakers returns the sorted names of breakers currently open
func (r *CircuitBreakerRegistry) OpenBreakers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var open []string
	for name, cb := range r.breakers {
		if cb.State() == gobreaker.StateOpen {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return open
}

var (
	globalMu       sync.Mutex
	globalRegistry *CircuitBreakerRegistry
)

// GetGlobalRegistry returns the process-wide registry, creating it with the
// default config on first use
func GetGlobalRegistry() *CircuitBreakerRegistry {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalRegistry == nil {
		globalRegistry = NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)
	}
	return globalRegistry
}

// SetGlobalRegistry replaces the process-wide registry (useful for testing)
func SetGlobalRegistry(r *CircuitBreakerRegistry) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalRegistry = r
}

// WithCircuitBreaker runs fn through the named breaker of the global registry
func WithCircuitBreaker[T any](ctx context.Context, name string, fn func() (T, error)) (T, error) {
	result, err := GetGlobalRegistry().Execute(ctx, name, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
