package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"stock-analyst/internal/app"
	"stock-analyst/models"
	"stock-analyst/observability"
)

// Error codes returned in the error payload
const (
	CodeStockNotFound           = "STOCK_NOT_FOUND"
	CodeNoStocksFound           = "NO_STOCKS_FOUND"
	CodeUpstreamUnavailable     = "UPSTREAM_UNAVAILABLE"
	CodeAnalysisFailed          = "ANALYSIS_FAILED"
	CodeValidation              = "VALIDATION_ERROR"
	CodeInsufficientSymbols     = "INSUFFICIENT_SYMBOLS"
	CodeInsufficientValidStocks = "INSUFFICIENT_VALID_STOCKS"
	CodeEmptyPortfolio          = "EMPTY_PORTFOLIO"
	CodeRateLimited             = "RATE_LIMITED"
	CodeCacheClearFailed        = "CACHE_CLEAR_FAILED"
	CodeInternal                = "INTERNAL_ERROR"
)

// ErrorBody is the payload of every error response
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		observability.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message, Details: details}})
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

func (h *Handler) jsonError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeError(w, status, code, message, details)
}

// handleError maps a pipeline error onto the error taxonomy. Internal error
// text is logged but never written to the client, except for validation
// messages which describe the caller's own input.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, details map[string]any) {
	status, code, message := classify(err, details)
	if status >= http.StatusInternalServerError {
		observability.WithRequest(r).Error("request failed", "code", code, "error", err)
	} else {
		observability.WithRequest(r).Debug("request rejected", "code", code, "error", err)
	}
	h.jsonError(w, status, code, message, details)
}

func classify(err error, details map[string]any) (int, string, string) {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, CodeValidation, err.Error()
	case errors.Is(err, models.ErrInsufficientSymbols):
		return http.StatusBadRequest, CodeInsufficientSymbols, "At least 2 symbols are required for comparison"
	case errors.Is(err, app.ErrEmptyPortfolio):
		return http.StatusBadRequest, CodeEmptyPortfolio, "Portfolio cannot be empty"
	case errors.Is(err, app.ErrInsufficientValidStocks):
		return http.StatusNotFound, CodeInsufficientValidStocks, "At least 2 valid stocks are required for comparison"
	case errors.Is(err, app.ErrNoStocksFound):
		return http.StatusNotFound, CodeNoStocksFound, "No valid stocks found for the provided symbols"
	case errors.Is(err, models.ErrQueueFull):
		return http.StatusTooManyRequests, CodeRateLimited, "Too many analyses in progress, try again later"
	case errors.Is(err, app.ErrAIUnavailable):
		return http.StatusServiceUnavailable, CodeUpstreamUnavailable, "AI provider is not configured"
	case errors.Is(err, models.ErrAnalysisFailed) &&
		(errors.Is(err, models.ErrUpstreamUnavailable) || errors.Is(err, context.DeadlineExceeded)):
		return http.StatusServiceUnavailable, CodeUpstreamUnavailable, "AI provider is temporarily unavailable"
	case errors.Is(err, models.ErrUpstreamUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, CodeUpstreamUnavailable, "Market data source is temporarily unavailable"
	case errors.Is(err, models.ErrAnalysisFailed):
		return http.StatusInternalServerError, CodeAnalysisFailed, "Failed to generate AI analysis for the stock"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, CodeStockNotFound, fmt.Sprintf("The requested stock symbol '%v' was not found", details["symbol"])
	default:
		return http.StatusInternalServerError, CodeInternal, "An internal error occurred"
	}
}
