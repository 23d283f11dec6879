// Package config provides configuration loading from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageBackend represents the storage implementation type.
type StorageBackend string

const (
	// StorageMemory uses in-memory storage (for development/testing).
	StorageMemory StorageBackend = "memory"
	// StoragePostgres uses PostgreSQL storage (for production).
	StoragePostgres StorageBackend = "postgres"
)

// Base contains common configuration shared by the monitor service and CLI.
type Base struct {
	// Service identification
	ServiceName string
	Environment string // development, staging, production
	Version     string

	// Storage backend for incidents
	StorageBackend StorageBackend

	// Database (used when StorageBackend is "postgres", and for the
	// connection-count probe)
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (snapshot cache and memory probe)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Observability
	OTLPEndpoint string
	LogLevel     string
	LogFormat    string // json, text

	// Tracing
	TracingEnabled  bool
	TracingSampling float64

	// Monitoring cadences
	CycleInterval          time.Duration
	InfrastructureInterval time.Duration
	SLAInterval            time.Duration
	RetentionSweepInterval time.Duration
	RetentionPeriodDays    int
	ExternalCallTimeout    time.Duration

	// Feature toggles
	DashboardsEnabled bool
	PredictiveEnabled bool

	// HTTP probe targets for the API monitor
	ProbeEndpoints []string
	ProbeInterval  time.Duration
}

// Load loads base configuration from environment variables.
func Load(serviceName string) (*Base, error) {
	cfg := &Base{
		ServiceName: serviceName,
		Environment: getEnv("VIGIL_ENV", "development"),
		Version:     getEnv("VIGIL_VERSION", "dev"),

		StorageBackend: parseStorageBackend(getEnv("VIGIL_STORAGE_BACKEND", "memory")),

		DBHost:     getEnv("VIGIL_DB_HOST", "localhost"),
		DBPort:     getEnvInt("VIGIL_DB_PORT", 5432),
		DBUser:     getEnv("VIGIL_DB_USER", "vigil"),
		DBPassword: getEnv("VIGIL_DB_PASSWORD", ""),
		DBName:     getEnv("VIGIL_DB_NAME", "vigil"),
		DBSSLMode:  getEnv("VIGIL_DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("VIGIL_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("VIGIL_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("VIGIL_REDIS_DB", 0),

		OTLPEndpoint: getEnv("VIGIL_OTLP_ENDPOINT", "localhost:4317"),
		LogLevel:     getEnv("VIGIL_LOG_LEVEL", "info"),
		LogFormat:    getEnv("VIGIL_LOG_FORMAT", "json"),

		TracingEnabled:  getEnvBool("VIGIL_TRACING_ENABLED", true),
		TracingSampling: getEnvFloat("VIGIL_TRACING_SAMPLING", 1.0),

		CycleInterval:          getEnvDuration("VIGIL_CYCLE_INTERVAL", 60*time.Second),
		InfrastructureInterval: getEnvDuration("VIGIL_INFRA_INTERVAL", 30*time.Second),
		SLAInterval:            getEnvDuration("VIGIL_SLA_INTERVAL", 5*time.Minute),
		RetentionSweepInterval: getEnvDuration("VIGIL_RETENTION_SWEEP_INTERVAL", 24*time.Hour),
		RetentionPeriodDays:    getEnvInt("VIGIL_RETENTION_DAYS", 30),
		ExternalCallTimeout:    getEnvDuration("VIGIL_EXTERNAL_TIMEOUT", 5*time.Second),

		DashboardsEnabled: getEnvBool("VIGIL_DASHBOARDS_ENABLED", true),
		PredictiveEnabled: getEnvBool("VIGIL_PREDICTIVE_ENABLED", true),

		ProbeEndpoints: getEnvList("VIGIL_PROBE_ENDPOINTS", nil),
		ProbeInterval:  getEnvDuration("VIGIL_PROBE_INTERVAL", 15*time.Second),
	}

	if cfg.RetentionPeriodDays < 1 {
		return nil, fmt.Errorf("invalid retention period: %d days", cfg.RetentionPeriodDays)
	}

	return cfg, nil
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Base) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// RetentionPeriod returns the retention period as a duration.
func (c *Base) RetentionPeriod() time.Duration {
	return time.Duration(c.RetentionPeriodDays) * 24 * time.Hour
}

// IsDevelopment returns true if running in development mode.
func (c *Base) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Base) IsProduction() bool {
	return c.Environment == "production"
}

// UseMemoryStorage returns true if using in-memory storage.
func (c *Base) UseMemoryStorage() bool {
	return c.StorageBackend == StorageMemory
}

// UsePostgresStorage returns true if using PostgreSQL storage.
func (c *Base) UsePostgresStorage() bool {
	return c.StorageBackend == StoragePostgres
}

// Helper functions

func parseStorageBackend(s string) StorageBackend {
	switch s {
	case "postgres", "postgresql", "pg":
		return StoragePostgres
	default:
		return StorageMemory
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return defaultValue
}
