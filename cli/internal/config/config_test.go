package config

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	for _, key := range []string{
		"VIGIL_REDIS_ADDR", "VIGIL_REDIS_PASSWORD", "VIGIL_REDIS_DB",
		"VIGIL_DB_HOST", "VIGIL_DB_PORT", "VIGIL_FORMAT", "VIGIL_VERBOSE",
	} {
		t.Setenv(key, "")
	}

	t.Run("default values", func(t *testing.T) {
		cfg := DefaultConfig()

		if cfg.RedisAddr != "localhost:6379" {
			t.Errorf("RedisAddr = %v, want localhost:6379", cfg.RedisAddr)
		}
		if cfg.DBHost != "localhost" {
			t.Errorf("DBHost = %v, want localhost", cfg.DBHost)
		}
		if cfg.DBPort != 5432 {
			t.Errorf("DBPort = %v, want 5432", cfg.DBPort)
		}
		if cfg.Format != "table" {
			t.Errorf("Format = %v, want table", cfg.Format)
		}
		if cfg.Verbose {
			t.Error("Verbose = true, want false")
		}
	})

	t.Run("from environment", func(t *testing.T) {
		t.Setenv("VIGIL_REDIS_ADDR", "redis.example.com:6379")
		t.Setenv("VIGIL_DB_HOST", "db.example.com")
		t.Setenv("VIGIL_DB_PORT", "5433")
		t.Setenv("VIGIL_FORMAT", "json")
		t.Setenv("VIGIL_VERBOSE", "true")

		cfg := DefaultConfig()

		if cfg.RedisAddr != "redis.example.com:6379" {
			t.Errorf("RedisAddr = %v, want redis.example.com:6379", cfg.RedisAddr)
		}
		if cfg.DBHost != "db.example.com" {
			t.Errorf("DBHost = %v, want db.example.com", cfg.DBHost)
		}
		if cfg.DBPort != 5433 {
			t.Errorf("DBPort = %v, want 5433", cfg.DBPort)
		}
		if cfg.Format != "json" {
			t.Errorf("Format = %v, want json", cfg.Format)
		}
		if !cfg.Verbose {
			t.Error("Verbose = false, want true")
		}
	})

	t.Run("invalid int falls back", func(t *testing.T) {
		t.Setenv("VIGIL_DB_PORT", "not-a-port")
		cfg := DefaultConfig()
		if cfg.DBPort != 5432 {
			t.Errorf("DBPort = %v, want default 5432", cfg.DBPort)
		}
	})
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: 5432, DBUser: "vigil",
		DBPassword: "s3cret", DBName: "vigil", DBSSLMode: "disable",
	}
	want := "host=db port=5432 user=vigil password=s3cret dbname=vigil sslmode=disable"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, want %q", got, want)
	}
}
