package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogPretty   bool

	// Metrics
	MetricsEnabled bool

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string
	SQLitePath  string

	// Neo4j
	Neo4jURL      string
	Neo4jUsername string
	Neo4jPassword string
	Neo4jDatabase string

	// JWT
	JWTSecret     string
	EncryptionKey string

	// LLM
	OpenAIAPIKey      string
	LLMBaseURL        string
	LLMModel          string
	LLMMaxTokens      int
	LLMTemperature    float64
	LLMTimeoutSec     int
	LLMResponseFormat string

	// Classification
	ClassifyBatchSize     int
	ClassifyModelCap      int
	ClassifyRetryCooldown time.Duration
	ClassifyBatchPause    time.Duration
	ClassifyRunTimeout    time.Duration
	ScoringPolicyFile     string

	// Gmail thread source
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// IMAP thread source
	IMAPServer   string
	IMAPPort     int
	IMAPUsername string
	IMAPPassword string
	IMAPMailbox  string

	// Worker (Redis Stream)
	WorkerID          string
	WorkerConcurrency int
	ConsumerBlockMS   int
	EventStream       string
	JobStream         string
	ConsumerGroup     string

	// Cache
	CategoryCacheTTL time.Duration

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogPretty:   getEnvBool("LOG_PRETTY", false),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "classifier"),
		RedisURL:    getEnv("REDIS_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "classifier.db"),

		// Neo4j
		Neo4jURL:      getEnv("NEO4J_URL", ""),
		Neo4jUsername: getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", ""),
		Neo4jDatabase: getEnv("NEO4J_DATABASE", "neo4j"),

		// JWT
		JWTSecret:     getEnv("JWT_SECRET", ""),
		EncryptionKey: getEnv("ENCRYPTION_KEY", getEnv("JWT_SECRET", "")),

		// LLM
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
		LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:      getEnvInt("LLM_MAX_TOKENS", 400),
		LLMTemperature:    getEnvFloat("LLM_TEMPERATURE", 0.2),
		LLMTimeoutSec:     getEnvInt("LLM_TIMEOUT_SEC", 60),
		LLMResponseFormat: getEnv("LLM_RESPONSE_FORMAT", "lines"),

		// Classification
		ClassifyBatchSize:     getEnvInt("CLASSIFY_BATCH_SIZE", 5),
		ClassifyModelCap:      getEnvInt("CLASSIFY_MODEL_CAP", 50),
		ClassifyRetryCooldown: getEnvDuration("CLASSIFY_RETRY_COOLDOWN", 2*time.Second),
		ClassifyBatchPause:    getEnvDuration("CLASSIFY_BATCH_PAUSE", 500*time.Millisecond),
		ClassifyRunTimeout:    getEnvDuration("CLASSIFY_RUN_TIMEOUT", 2*time.Minute),
		ScoringPolicyFile:     getEnv("SCORING_POLICY_FILE", ""),

		// Gmail
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),

		// IMAP
		IMAPServer:   getEnv("IMAP_SERVER", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPUsername: getEnv("IMAP_USERNAME", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMailbox:  getEnv("IMAP_MAILBOX", "INBOX"),

		// Worker
		WorkerID:          getEnv("WORKER_ID", generateWorkerID()),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		ConsumerBlockMS:   getEnvInt("CONSUMER_BLOCK_MS", 5000),
		EventStream:       getEnv("EVENT_STREAM", "category:events"),
		JobStream:         getEnv("JOB_STREAM", "classify:jobs"),
		ConsumerGroup:     getEnv("CONSUMER_GROUP", "classifier"),

		// Cache
		CategoryCacheTTL: getEnvDuration("CATEGORY_CACHE_TTL", 10*time.Minute),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}

	if cfg.LLMResponseFormat != "lines" && cfg.LLMResponseFormat != "json" {
		return nil, fmt.Errorf("LLM_RESPONSE_FORMAT must be lines or json, got %q", cfg.LLMResponseFormat)
	}
	if cfg.ClassifyBatchSize <= 0 {
		return nil, fmt.Errorf("CLASSIFY_BATCH_SIZE must be positive, got %d", cfg.ClassifyBatchSize)
	}
	return cfg, nil
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
