package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AI provider identifiers
const (
	ProviderOpenAI    = "openai"
	ProviderBedrock   = "bedrock"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Config holds all application configuration
type Config struct {
	// Environment ("development" or "production")
	Environment string
	LogLevel    string

	// Cache backend configuration
	Redis    RedisConfig
	Database DatabaseConfig
	Cache    CacheConfig

	// AI provider configuration
	AI        AIConfig
	OpenAI    OpenAIConfig
	AWS       AWSConfig
	Anthropic AnthropicConfig
	Gemini    GeminiConfig

	// Market data configuration
	MarketData   MarketDataConfig
	AlphaVantage AlphaVantageConfig

	// Analysis configuration
	Analysis AnalysisConfig

	// HTTP configuration
	HTTP HTTPConfig
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// CacheConfig holds cache TTLs
type CacheConfig struct {
	StockDataTTLSeconds int
	AnalysisTTLSeconds  int
}

// AIConfig selects the completion provider
type AIConfig struct {
	Provider string
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string
}

// AWSConfig holds AWS Bedrock configuration
type AWSConfig struct {
	Region           string
	BedrockModelID   string
	AnthropicVersion string
}

// AnthropicConfig holds Anthropic API configuration
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey string
	Model  string
}

// MarketDataConfig holds upstream market data configuration
type MarketDataConfig struct {
	YahooBaseURL     string
	TimeoutSeconds   int
	CallDelayMillis  int
	DefaultPeriod    string
	DefaultInterval  string
	MaxBatchSymbols  int
	MaxCompareSymbol int
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey  string
	BaseURL string
}

// AnalysisConfig holds analysis configuration
type AnalysisConfig struct {
	ConcurrencyLimit      int
	Temperature           float64
	ComparisonMaxTokens   int
	HealthCacheTTLSeconds int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr                  string
	CORSAllowedOrigins    string
	RateLimitPerMinute    int
	RequestTimeoutSeconds int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvString("APP_ENV", "development"),
		LogLevel:    getEnvString("LOG_LEVEL", "info"),
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Cache: CacheConfig{
			StockDataTTLSeconds: getEnvInt("STOCK_DATA_CACHE_TTL", 43200),
			AnalysisTTLSeconds:  getEnvInt("ANALYSIS_CACHE_TTL", 86400),
		},
		AI: AIConfig{
			Provider: strings.ToLower(getEnvString("AI_PROVIDER", ProviderOpenAI)),
		},
		OpenAI: OpenAIConfig{
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			Model:     getEnvString("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens: getEnvInt("OPENAI_MAX_TOKENS", 2000),
			BaseURL:   os.Getenv("OPENAI_BASE_URL"),
		},
		AWS: AWSConfig{
			Region:           os.Getenv("AWS_REGION"),
			BedrockModelID:   getEnvString("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
			AnthropicVersion: getEnvString("BEDROCK_ANTHROPIC_VERSION", "bedrock-2023-05-31"),
		},
		Anthropic: AnthropicConfig{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  getEnvString("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnvString("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		MarketData: MarketDataConfig{
			YahooBaseURL:     getEnvString("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			TimeoutSeconds:   getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 30),
			CallDelayMillis:  getEnvIntAllowZero("UPSTREAM_CALL_DELAY_MS", 1000),
			DefaultPeriod:    getEnvString("DEFAULT_PERIOD", "1mo"),
			DefaultInterval:  getEnvString("DEFAULT_INTERVAL", "1d"),
			MaxBatchSymbols:  getEnvInt("MAX_BATCH_SYMBOLS", 10),
			MaxCompareSymbol: getEnvInt("MAX_COMPARE_SYMBOLS", 5),
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey:  os.Getenv("ALPHA_VANTAGE_API_KEY"),
			BaseURL: getEnvString("ALPHA_VANTAGE_BASE_URL", "https://www.alphavantage.co/query"),
		},
		Analysis: AnalysisConfig{
			ConcurrencyLimit:      getEnvInt("ANALYSIS_CONCURRENCY_LIMIT", 3),
			Temperature:           getEnvFloat("ANALYSIS_TEMPERATURE", 0.3),
			ComparisonMaxTokens:   getEnvInt("COMPARISON_MAX_TOKENS", 1500),
			HealthCacheTTLSeconds: getEnvInt("HEALTH_CACHE_TTL_SECONDS", 30),
		},
		HTTP: HTTPConfig{
			Addr:                  getEnvString("HTTP_ADDR", ":8000"),
			CORSAllowedOrigins:    getEnvString("CORS_ALLOWED_ORIGINS", "*"),
			RateLimitPerMinute:    getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
			RequestTimeoutSeconds: getEnvInt("REQUEST_TIMEOUT_SECONDS", 60),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case ProviderOpenAI, ProviderBedrock, ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("AI_PROVIDER must be one of openai, bedrock, anthropic, gemini, got %q", c.AI.Provider)
	}

	if c.Cache.StockDataTTLSeconds <= 0 {
		return fmt.Errorf("STOCK_DATA_CACHE_TTL must be positive, got %d", c.Cache.StockDataTTLSeconds)
	}
	if c.Cache.AnalysisTTLSeconds <= 0 {
		return fmt.Errorf("ANALYSIS_CACHE_TTL must be positive, got %d", c.Cache.AnalysisTTLSeconds)
	}
	if c.OpenAI.MaxTokens <= 0 {
		return fmt.Errorf("OPENAI_MAX_TOKENS must be positive, got %d", c.OpenAI.MaxTokens)
	}
	if c.MarketData.TimeoutSeconds <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT_SECONDS must be positive, got %d", c.MarketData.TimeoutSeconds)
	}
	if c.MarketData.CallDelayMillis < 0 {
		return fmt.Errorf("UPSTREAM_CALL_DELAY_MS must not be negative, got %d", c.MarketData.CallDelayMillis)
	}
	if c.Analysis.ConcurrencyLimit <= 0 {
		return fmt.Errorf("ANALYSIS_CONCURRENCY_LIMIT must be positive, got %d", c.Analysis.ConcurrencyLimit)
	}
	if c.Analysis.Temperature < 0 || c.Analysis.Temperature > 1 {
		return fmt.Errorf("ANALYSIS_TEMPERATURE must be between 0 and 1, got %.2f", c.Analysis.Temperature)
	}
	if c.HTTP.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.HTTP.RateLimitPerMinute)
	}

	return nil
}

// IsProduction returns true when running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasRedis returns true if Redis configuration is available
func (c *Config) HasRedis() bool {
	return c.Redis.URL != ""
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasAIProvider returns true if the selected provider has credentials
func (c *Config) HasAIProvider() bool {
	switch c.AI.Provider {
	case ProviderOpenAI:
		return c.OpenAI.APIKey != ""
	case ProviderBedrock:
		return c.AWS.Region != "" && c.AWS.BedrockModelID != ""
	case ProviderAnthropic:
		return c.Anthropic.APIKey != ""
	case ProviderGemini:
		return c.Gemini.APIKey != ""
	}
	return false
}

// HasAlphaVantage returns true if Alpha Vantage configuration is available
func (c *Config) HasAlphaVantage() bool {
	return c.AlphaVantage.APIKey != ""
}

// StockDataTTL returns the snapshot cache TTL
func (c *Config) StockDataTTL() time.Duration {
	return time.Duration(c.Cache.StockDataTTLSeconds) * time.Second
}

// AnalysisTTL returns the analysis cache TTL
func (c *Config) AnalysisTTL() time.Duration {
	return time.Duration(c.Cache.AnalysisTTLSeconds) * time.Second
}

// UpstreamTimeout returns the market data HTTP timeout
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.MarketData.TimeoutSeconds) * time.Second
}

// UpstreamCallDelay returns the pause before each upstream market data call
func (c *Config) UpstreamCallDelay() time.Duration {
	return time.Duration(c.MarketData.CallDelayMillis) * time.Millisecond
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvIntAllowZero(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed >= 0 && parsed <= 1 {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Cache: CacheConfig{
			StockDataTTLSeconds: 43200,
			AnalysisTTLSeconds:  86400,
		},
		AI: AIConfig{
			Provider: ProviderOpenAI,
		},
		OpenAI: OpenAIConfig{
			APIKey:    "",
			Model:     "gpt-4o-mini",
			MaxTokens: 2000,
		},
		AWS: AWSConfig{
			BedrockModelID:   "anthropic.claude-3-haiku-20240307-v1:0",
			AnthropicVersion: "bedrock-2023-05-31",
		},
		Anthropic: AnthropicConfig{
			Model: "claude-3-5-haiku-latest",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.0-flash",
		},
		MarketData: MarketDataConfig{
			YahooBaseURL:     "https://query1.finance.yahoo.com",
			TimeoutSeconds:   30,
			CallDelayMillis:  0,
			DefaultPeriod:    "1mo",
			DefaultInterval:  "1d",
			MaxBatchSymbols:  10,
			MaxCompareSymbol: 5,
		},
		AlphaVantage: AlphaVantageConfig{
			BaseURL: "https://www.alphavantage.co/query",
		},
		Analysis: AnalysisConfig{
			ConcurrencyLimit:      3,
			Temperature:           0.3,
			ComparisonMaxTokens:   1500,
			HealthCacheTTLSeconds: 30,
		},
		HTTP: HTTPConfig{
			Addr:                  ":8000",
			CORSAllowedOrigins:    "*",
			RateLimitPerMinute:    60,
			RequestTimeoutSeconds: 60,
		},
	}
}
