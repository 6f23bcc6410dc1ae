package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"stock-analyst/models"
)

const userAgent = "Mozilla/5.0 (compatible; stock-analyst/1.0)"

// classifyStatus maps a non-200 upstream status to the error taxonomy.
// Only 404 means the upstream has nothing for the symbol; auth rejections,
// throttling and server errors are upstream outages.
func classifyStatus(service string, status int) error {
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%s returned 404: %w", service, models.ErrNotFound)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s rate limited (429): %w", service, models.ErrUpstreamUnavailable)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%s unauthorized (%d): %w", service, status, models.ErrUpstreamUnavailable)
	case status >= 500:
		return fmt.Errorf("%s server error (%d): %w", service, status, models.ErrUpstreamUnavailable)
	case status >= 400:
		return fmt.Errorf("%s rejected request (%d): %w", service, status, models.ErrUpstreamUnavailable)
	default:
		return fmt.Errorf("%s unexpected status %d: %w", service, status, models.ErrUpstreamUnavailable)
	}
}

// categorizeAPIError categorizes an error for metrics purposes
func categorizeAPIError(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, models.ErrNotFound) {
		return "not_found"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case contains(errStr, "circuit breaker", "half-open"):
		return "circuit_open"
	case contains(errStr, "timeout", "deadline"):
		return "timeout"
	case contains(errStr, "rate limit", "429"):
		return "rate_limit"
	case contains(errStr, "unauthorized", "401", "403"):
		return "auth_error"
	case contains(errStr, "connection", "network", "no such host"):
		return "connection_error"
	default:
		return "unknown"
	}
}

// contains checks if the string contains any of the substrings
func contains(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// stripCodeFence removes a surrounding markdown code fence that some models
// wrap JSON output in
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
