// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"contexthub-backend/domain/config"
)

// PersistenceMode selects the backing store
type PersistenceMode string

const (
	PersistenceMemory   PersistenceMode = "memory"
	PersistenceDynamoDB PersistenceMode = "dynamodb"
)

// Config holds all service configuration
type Config struct {
	ServerAddress string
	Environment   string
	LogLevel      string

	PersistenceMode PersistenceMode

	AWSRegion     string
	DynamoDBTable string
	ProjectIndex  string
	ArtifactIndex string

	EventBusName      string
	EnableEventBridge bool
	EnableMetrics     bool
	EnableTracing     bool
	EnableCORS        bool

	MetricsNamespace  string
	HeartbeatInterval time.Duration
	RateLimitPerMin   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		PersistenceMode: PersistenceMode(getEnv("PERSISTENCE_MODE", string(PersistenceMemory))),

		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
		DynamoDBTable: getEnv("DYNAMODB_TABLE", "contexthub"),
		ProjectIndex:  getEnv("DYNAMODB_PROJECT_INDEX", "GSI1"),
		ArtifactIndex: getEnv("DYNAMODB_ARTIFACT_INDEX", "GSI2"),

		EventBusName:      getEnv("EVENT_BUS_NAME", "contexthub-events"),
		EnableEventBridge: getEnvBool("ENABLE_EVENTBRIDGE", false),
		EnableMetrics:     getEnvBool("ENABLE_METRICS", false),
		EnableTracing:     getEnvBool("ENABLE_TRACING", false),
		EnableCORS:        getEnvBool("ENABLE_CORS", true),

		MetricsNamespace:  getEnv("METRICS_NAMESPACE", "ContextHub"),
		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL", config.DefaultHeartbeatInterval),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MIN", 120),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	switch c.PersistenceMode {
	case PersistenceMemory, PersistenceDynamoDB:
	default:
		return fmt.Errorf("invalid PERSISTENCE_MODE %q, must be memory or dynamodb", c.PersistenceMode)
	}
	if c.PersistenceMode == PersistenceDynamoDB && c.DynamoDBTable == "" {
		return fmt.Errorf("DYNAMODB_TABLE is required when PERSISTENCE_MODE is dynamodb")
	}
	if c.EnableEventBridge && c.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when ENABLE_EVENTBRIDGE is set")
	}
	if c.HeartbeatInterval < time.Second {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be at least one second")
	}
	if c.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
