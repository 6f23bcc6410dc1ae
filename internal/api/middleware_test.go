package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stock-analyst/observability"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	// Test default status code
	if rw.statusCode != http.StatusOK {
		t.Errorf("Expected default status code to be 200, got %d", rw.statusCode)
	}

	rw.WriteHeader(http.StatusNotFound)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("Expected status code to be 404, got %d", rw.statusCode)
	}

	data := []byte(`{"symbol":"AAPL"}`)
	n, err := rw.Write(data)
	if err != nil {
		t.Errorf("Write returned error: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(data), n)
	}

	// Multiple writes accumulate
	rw.Write(data)
	if rw.responseSize != 2*len(data) {
		t.Errorf("Expected cumulative response size to be %d, got %d", 2*len(data), rw.responseSize)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/api/v1/stocks/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		if routePattern(r) != "/api/v1/stocks/{symbol}" {
			t.Errorf("route pattern = %s", routePattern(r))
		}
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stocks/AAPL", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status 418, got %d", w.Code)
	}
}

func TestRoutePattern_Unmatched(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	if got := routePattern(req); got != "unmatched" {
		t.Errorf("routePattern() = %s, want unmatched", got)
	}
}

func TestCORSMiddleware(t *testing.T) {
	called := false
	handler := CORSMiddleware("https://example.com")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/stocks/AAPL", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if called {
		t.Error("preflight should not reach the handler")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "https://example.com" {
		t.Errorf("origin header = %s", w.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stocks/AAPL", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !called {
		t.Error("GET should reach the handler")
	}
}

func TestClientRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	limiter := NewClientRateLimiter(2)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatal("burst should allow two requests")
	}
	if limiter.Allow("10.0.0.1") {
		t.Error("third request within the minute should be rejected")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Error("other clients have their own budget")
	}

	now = now.Add(30 * time.Second)
	if !limiter.Allow("10.0.0.1") {
		t.Error("a token should refill after half a minute")
	}
}

func TestClientRateLimiter_SweepsIdleClients(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	limiter := NewClientRateLimiter(1)
	limiter.now = func() time.Time { return now }

	limiter.Allow("10.0.0.1")
	now = now.Add(clientIdleTimeout + time.Second)
	limiter.Allow("10.0.0.2")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.clients["10.0.0.1"]; ok {
		t.Error("idle client should have been swept")
	}
	if len(limiter.clients) != 1 {
		t.Errorf("clients = %d, want 1", len(limiter.clients))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewClientRateLimiter(1)
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stocks/AAPL", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Error("missing Retry-After header")
	}
	if code := errorCode(t, w); code != CodeRateLimited {
		t.Errorf("code = %s, want %s", code, CodeRateLimited)
	}
}

func TestRateLimitMiddleware_BoundedMetricLabels(t *testing.T) {
	prev := observability.GetMetrics()
	m := observability.NewMetrics(prometheus.NewRegistry())
	observability.SetMetrics(m)
	t.Cleanup(func() { observability.SetMetrics(prev) })

	handler := RateLimitMiddleware(NewClientRateLimiter(1))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for _, sym := range []string{"AAPL", "A1", "A2", "A3", "A4"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stocks/"+sym, nil)
		req.RemoteAddr = "192.0.2.9:1234"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if n := testutil.CollectAndCount(m.HTTPRateLimitedTotal); n != 1 {
		t.Errorf("rate-limited series = %d, want 1 regardless of symbol", n)
	}
	if got := testutil.ToFloat64(m.HTTPRateLimitedTotal.WithLabelValues("/api/v1/stocks")); got != 4 {
		t.Errorf("rejections = %v, want 4", got)
	}
}

func TestRateLimitLabel(t *testing.T) {
	tests := map[string]string{
		"/api/v1/stocks/AAPL":        "/api/v1/stocks",
		"/api/v1/stocks/search":      "/api/v1/stocks",
		"/api/v1/analysis/NPN.JO":    "/api/v1/analysis",
		"/api/v1/analysis/tokens":    "/api/v1/analysis",
		"/api/v1/whatever-user-sent": "/api/v1",
		"/api/v1":                    "/api/v1",
		"/elsewhere":                 "/api/v1",
	}
	for path, want := range tests {
		if got := rateLimitLabel(path); got != want {
			t.Errorf("rateLimitLabel(%q) = %s, want %s", path, got, want)
		}
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := clientKey(req); got != "192.0.2.1" {
		t.Errorf("clientKey() = %s", got)
	}
	req.RemoteAddr = "192.0.2.1"
	if got := clientKey(req); got != "192.0.2.1" {
		t.Errorf("clientKey() without port = %s", got)
	}
}
