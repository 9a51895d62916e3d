package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// External collaborators
	SQLGeneratorURL    string
	SQLGeneratorAPIKey string
	RuleProcessorURL   string
	QueryAPIURL        string // SQL execution service; empty disables row fetching

	// HTTP client
	HTTPTimeout time.Duration

	// Routing
	UseGenerativeSQL bool          // feature flag for the LLM path
	AdaptiveRouting  bool          // enable the history-based decision engine
	GenerateTimeout  time.Duration // per-call budget for SQL generation
	MinConfidence    float64       // below this, a generative result is a failure

	// Circuit breaker / health probe
	FailureThreshold    int
	CooldownDuration    time.Duration
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
	FallbackAlertRatio  float64
	AlertCooldown       time.Duration

	// Resilience (outbound clients)
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Observability
	OTLPEndpoint string

	// Admin API
	AdminKeyHash string // bcrypt hash of the admin API key; empty disables admin routes
	JWTSecret    string
	JWTAccessTTL time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SQLGeneratorURL:    getEnv("SQL_GENERATOR_URL", "http://localhost:8090"),
		SQLGeneratorAPIKey: getEnv("SQL_GENERATOR_API_KEY", ""),
		RuleProcessorURL:   getEnv("RULE_PROCESSOR_URL", "http://localhost:8091"),
		QueryAPIURL:        getEnv("QUERY_API_URL", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 30*time.Second),

		UseGenerativeSQL: getEnv("USE_GENERATIVE_SQL", "true") == "true",
		AdaptiveRouting:  getEnv("ADAPTIVE_ROUTING", "true") == "true",
		GenerateTimeout:  getEnvDuration("GENERATE_TIMEOUT", 20*time.Second),
		MinConfidence:    getEnvFloat("MIN_CONFIDENCE", 0.3),

		FailureThreshold:    getEnvInt("FAILURE_THRESHOLD", 3),
		CooldownDuration:    getEnvDuration("COOLDOWN_DURATION", 5*time.Minute),
		HealthCheckInterval: getEnvDuration("HEALTH_CHECK_INTERVAL", 60*time.Second),
		HealthCheckTimeout:  getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
		FallbackAlertRatio:  getEnvFloat("FALLBACK_ALERT_RATIO", 0.5),
		AlertCooldown:       getEnvDuration("ALERT_COOLDOWN", 30*time.Minute),

		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		AdminKeyHash: getEnv("ADMIN_KEY_HASH", ""),
		JWTSecret:    getEnv("JWT_SECRET", "proativo-default-dev-secret-change-me"),
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
