// Package config provides configuration for the CLI.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds CLI configuration. The CLI reads agent state from Redis and,
// for incident queries, directly from the incident database.
type Config struct {
	// Redis, where the agent caches its latest snapshot and report
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Incident database (postgres backend only)
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Output format
	Format string // json, table, yaml

	// Verbosity
	Verbose bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		RedisAddr:     getEnv("VIGIL_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("VIGIL_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("VIGIL_REDIS_DB", 0),

		DBHost:     getEnv("VIGIL_DB_HOST", "localhost"),
		DBPort:     getEnvInt("VIGIL_DB_PORT", 5432),
		DBUser:     getEnv("VIGIL_DB_USER", "vigil"),
		DBPassword: getEnv("VIGIL_DB_PASSWORD", ""),
		DBName:     getEnv("VIGIL_DB_NAME", "vigil"),
		DBSSLMode:  getEnv("VIGIL_DB_SSLMODE", "disable"),

		Format:  getEnv("VIGIL_FORMAT", "table"),
		Verbose: getEnvBool("VIGIL_VERBOSE", false),
	}
}

// DatabaseDSN returns the PostgreSQL connection string for incident queries.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		n, err := strconv.Atoi(value)
		if err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}
