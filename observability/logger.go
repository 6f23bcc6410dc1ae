package observability

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
)

var (
	loggerMu sync.RWMutex
	// Logger is the process-wide logger. Use SetLogger to replace it.
	Logger *slog.Logger
)

// InitLogger configures the process logger at info level. Production writes
// JSON lines, development writes logfmt text.
func InitLogger(production bool) {
	InitLoggerWithLevel(production, slog.LevelInfo)
}

// InitLoggerWithLevel configures the process logger on stdout
func InitLoggerWithLevel(production bool, level slog.Level) {
	SetLogger(NewLogger(os.Stdout, production, level))
}

// NewLogger builds a logger tagged with the service name
func NewLogger(w io.Writer, production bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if production {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", "stock-analyst")
}

// SetLogger replaces the process logger and the slog default
func SetLogger(l *slog.Logger) {
	loggerMu.Lock()
	Logger = l
	loggerMu.Unlock()
	slog.SetDefault(l)
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func logger() *slog.Logger {
	loggerMu.RLock()
	l := Logger
	loggerMu.RUnlock()
	if l == nil {
		InitLogger(false)
		return logger()
	}
	return l
}

func Info(msg string, args ...any)  { logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { logger().Warn(msg, args...) }
func Error(msg string, args ...any) { logger().Error(msg, args...) }
func Debug(msg string, args ...any) { logger().Debug(msg, args...) }

// Fatal logs at error level and exits
func Fatal(msg string, args ...any) {
	logger().Error(msg, args...)
	os.Exit(1)
}

// WithOperation returns a logger tagged with the symbol, market and
// pipeline operation being performed
func WithOperation(symbol, market, operation string) *slog.Logger {
	return logger().With("symbol", symbol, "market", market, "operation", operation)
}

// WithRequest returns a logger tagged with the chi request id, method and
// path of r
func WithRequest(r *http.Request) *slog.Logger {
	return logger().With(
		"request_id", middleware.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}
