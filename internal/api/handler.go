package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"stock-analyst/config"
	"stock-analyst/internal/app"
	"stock-analyst/models"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// Handler handles HTTP API requests
type Handler struct {
	app *app.App
	cfg *config.Config
	now func() time.Time
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg, now: time.Now}
}

// BatchRequest is the body of a batch snapshot request
type BatchRequest struct {
	Symbols  []string `json:"symbols"`
	Period   string   `json:"period"`
	Interval string   `json:"interval"`
}

// CompareRequest is the body of a comparison request
type CompareRequest struct {
	Symbols []string `json:"symbols"`
}

// PortfolioRequest is the body of a portfolio analysis request
type PortfolioRequest struct {
	Holdings []models.Holding `json:"holdings"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return invalid("invalid request body")
	}
	return nil
}

func queryOr(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}

// HandleIndex returns service information
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]any{
		"name":        "AI Stock Analysis API",
		"version":     app.Version,
		"description": "AI-powered stock and cryptocurrency analysis",
		"endpoints": map[string]string{
			"stocks":   "/api/v1/stocks",
			"analysis": "/api/v1/analysis",
			"health":   "/health",
			"metrics":  "/metrics",
		},
		"supported_markets": []models.Market{models.MarketUS, models.MarketZA, models.MarketCrypto},
		"features": []string{
			"Real-time stock and crypto data",
			"Technical indicators (RSI, SMA, MACD)",
			"AI-powered BUY/HOLD/SELL recommendations",
			"Stock comparison",
			"Portfolio analysis",
			"Response caching",
		},
	})
}

// HandleHealth returns the health status of the service
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, h.app.Health(r.Context()))
}

// HandleGetStock returns the snapshot of one symbol
func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	symbol, err := ValidateSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	market, err := ValidateMarket(queryOr(r, "market", string(models.MarketUS)), false)
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	period, err := ValidatePeriod(queryOr(r, "period", h.cfg.MarketData.DefaultPeriod))
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	interval, err := ValidateInterval(queryOr(r, "interval", h.cfg.MarketData.DefaultInterval))
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}

	snap, err := h.app.GetStock(r.Context(), symbol, models.Market(market), period, interval)
	if err != nil {
		h.handleError(w, r, err, map[string]any{"symbol": symbol, "market": market})
		return
	}
	h.jsonResponse(w, http.StatusOK, snap)
}

// HandleBatch returns the snapshots of several symbols
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := h.decode(w, r, &req); err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	symbols, err := ValidateSymbols(req.Symbols, h.cfg.MarketData.MaxBatchSymbols)
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	if req.Period == "" {
		req.Period = h.cfg.MarketData.DefaultPeriod
	}
	if req.Interval == "" {
		req.Interval = h.cfg.MarketData.DefaultInterval
	}
	if _, err := ValidatePeriod(req.Period); err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	if _, err := ValidateInterval(req.Interval); err != nil {
		h.handleError(w, r, err, nil)
		return
	}

	stocks, err := h.app.GetBatch(r.Context(), symbols, req.Period, req.Interval)
	if err != nil {
		h.handleError(w, r, err, map[string]any{"symbols": symbols})
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]any{"stocks": stocks})
}

// HandleSearch searches the symbol catalogue
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		h.handleError(w, r, invalid("query is required"), nil)
		return
	}
	market, err := ValidateMarket(queryOr(r, "market", app.MarketAll), true)
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	limit, err := ParseLimit(r.URL.Query().Get("limit"), 10, maxSearchLimit)
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]any{"results": h.app.Search(query, market, limit)})
}

// HandleMarketStatus reports which markets are open
func (h *Handler) HandleMarketStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.app.MarketStatus()
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]any{
		"timestamp": h.now().UTC(),
		"markets":   status,
	})
}

// HandleAnalyzeStock returns the AI analysis of one symbol
func (h *Handler) HandleAnalyzeStock(w http.ResponseWriter, r *http.Request) {
	symbol, err := ValidateSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	market, err := ValidateMarket(queryOr(r, "market", string(models.MarketUS)), false)
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	if _, err := ValidateAnalysisType(queryOr(r, "analysis_type", "comprehensive")); err != nil {
		h.handleError(w, r, err, nil)
		return
	}

	result, err := h.app.AnalyzeStock(r.Context(), symbol, models.Market(market))
	if err != nil {
		h.handleError(w, r, err, map[string]any{"symbol": symbol, "market": market})
		return
	}
	h.jsonResponse(w, http.StatusOK, result)
}

// HandleCompare ranks two to five symbols
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := h.decode(w, r, &req); err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	symbols, err := ValidateSymbols(req.Symbols, h.cfg.MarketData.MaxCompareSymbol)
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	if len(symbols) < 2 {
		h.handleError(w, r, models.ErrInsufficientSymbols, map[string]any{"provided": len(symbols)})
		return
	}

	result, err := h.app.Compare(r.Context(), symbols)
	if err != nil {
		h.handleError(w, r, err, map[string]any{"symbols": symbols})
		return
	}
	h.jsonResponse(w, http.StatusOK, result)
}

// HandlePortfolio values and reviews a set of holdings
func (h *Handler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	var req PortfolioRequest
	if err := h.decode(w, r, &req); err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	for i, holding := range req.Holdings {
		symbol, err := ValidateSymbol(holding.Symbol)
		if err != nil {
			h.handleError(w, r, err, nil)
			return
		}
		req.Holdings[i].Symbol = symbol
	}

	result, err := h.app.AnalyzePortfolio(r.Context(), req.Holdings)
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	h.jsonResponse(w, http.StatusOK, result)
}

// HandleTokenUsage returns the current token usage session
func (h *Handler) HandleTokenUsage(w http.ResponseWriter, r *http.Request) {
	stats := h.app.TokenUsage()
	h.jsonResponse(w, http.StatusOK, map[string]any{
		"status":      "success",
		"token_usage": stats,
		"message":     fmt.Sprintf("Total tokens used: %d, Total cost: $%.6f", stats.TotalTokensUsed, stats.TotalCostUSD),
	})
}

// HandleResetTokenUsage starts a new token usage session
func (h *Handler) HandleResetTokenUsage(w http.ResponseWriter, r *http.Request) {
	prev := h.app.ResetTokenUsage()
	h.jsonResponse(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Token usage statistics reset",
		"previous_session": map[string]any{
			"session_id":  prev.SessionID,
			"tokens_used": prev.TotalTokensUsed,
			"cost_usd":    prev.TotalCostUSD,
		},
	})
}

// HandleClearCache deletes every cached analysis
func (h *Handler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	n, err := h.app.ClearAnalysisCache(r.Context())
	if err != nil {
		h.jsonError(w, http.StatusServiceUnavailable, CodeCacheClearFailed, "Failed to clear analysis cache", nil)
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]any{
		"status":       "success",
		"message":      "Analysis cache cleared successfully",
		"keys_cleared": n,
		"timestamp":    h.now().UTC(),
	})
}

// HandleAnalysisHealth reports whether analyses can be produced
func (h *Handler) HandleAnalysisHealth(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, h.app.AnalysisHealth(r.Context()))
}
