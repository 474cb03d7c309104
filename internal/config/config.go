package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port             string
	Env              string
	LogLevel         string
	BusinessTimezone string

	// Storage
	StorageBackend string
	DatabaseURL    string
	LeadsTable     string

	// Enrichment queue
	UseMemoryQueue     bool
	WorkerCount        int
	EnrichmentQueueURL string
	EnrichmentTimeout  time.Duration
	WriteTimeout       time.Duration

	// LLM providers
	LLMProvider         string
	LLMFallbackProvider string
	GeminiAPIKey        string
	GeminiModelID       string
	BedrockModelID      string
	AnthropicAPIKey     string
	AnthropicModelID    string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// HTTP
	SubmitRatePerMinute int
	AdminJWTSecret      string
	CORSAllowedOrigins  []string

	// Alerts
	AlertEmailTo     string
	EmailProvider    string
	SendGridAPIKey   string
	EmailFromAddress string
	EmailFromName    string

	// Archive
	ArchiveBucket string

	// Sweeper
	SweeperEnabled         bool
	UrgencyRefreshSchedule string
	BackfillSchedule       string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		BusinessTimezone: getEnv("BUSINESS_TIMEZONE", "America/New_York"),

		StorageBackend: strings.ToLower(strings.TrimSpace(getEnv("STORAGE_BACKEND", ""))),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		LeadsTable:     getEnv("LEADS_TABLE", "leads"),

		UseMemoryQueue:     getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:        getEnvAsInt("WORKER_COUNT", 2),
		EnrichmentQueueURL: getEnv("ENRICHMENT_QUEUE_URL", ""),
		EnrichmentTimeout:  getEnvAsDuration("ENRICHMENT_TIMEOUT", 20*time.Second),
		WriteTimeout:       getEnvAsDuration("ENRICHMENT_WRITE_TIMEOUT", 10*time.Second),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "gemini"))),
		LLMFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModelID:    getEnv("ANTHROPIC_MODEL_ID", "claude-haiku-4-5-20251001"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SubmitRatePerMinute: getEnvAsInt("SUBMIT_RATE_PER_MINUTE", 10),
		AdminJWTSecret:      getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS"),

		AlertEmailTo:     getEnv("ALERT_EMAIL_TO", ""),
		EmailProvider:    strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Move Info Central"),

		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),

		SweeperEnabled:         getEnvAsBool("SWEEPER_ENABLED", true),
		UrgencyRefreshSchedule: getEnv("URGENCY_REFRESH_SCHEDULE", "5 0 * * *"),
		BackfillSchedule:       getEnv("BACKFILL_SCHEDULE", "*/10 * * * *"),
	}
}

// ResolvedStorageBackend picks postgres when a database URL is present and no
// backend was named explicitly.
func (c *Config) ResolvedStorageBackend() string {
	if c.StorageBackend != "" {
		return c.StorageBackend
	}
	if strings.TrimSpace(c.DatabaseURL) != "" {
		return "postgres"
	}
	return "memory"
}

// Location returns the business time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
