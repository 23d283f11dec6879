package database

import (
	"embed"
	"testing"
	"time"
)

//go:embed testdata/*.sql
var testMigrations embed.FS

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Host != "localhost" {
		t.Errorf("Host = %v, want %v", cfg.Host, "localhost")
	}
	if cfg.Port != 5432 {
		t.Errorf("Port = %v, want %v", cfg.Port, 5432)
	}
	if cfg.User != "vigil" {
		t.Errorf("User = %v, want %v", cfg.User, "vigil")
	}
	if cfg.Database != "vigil" {
		t.Errorf("Database = %v, want %v", cfg.Database, "vigil")
	}
	if cfg.SSLMode != "disable" {
		t.Errorf("SSLMode = %v, want %v", cfg.SSLMode, "disable")
	}
	if cfg.MaxOpenConns != 25 {
		t.Errorf("MaxOpenConns = %v, want %v", cfg.MaxOpenConns, 25)
	}
	if cfg.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("ConnMaxLifetime = %v, want %v", cfg.ConnMaxLifetime, 5*time.Minute)
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{
		Host:     "db.internal",
		Port:     5433,
		User:     "monitor",
		Password: "secret",
		Database: "metrics",
		SSLMode:  "require",
	}

	want := "host=db.internal port=5433 user=monitor password=secret dbname=metrics sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestMigrator_LoadMigrations(t *testing.T) {
	m := NewMigrator(nil, "monitor")

	if err := m.LoadMigrations(testMigrations, "testdata"); err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}

	if len(m.migrations) != 2 {
		t.Fatalf("migrations count = %d, want 2", len(m.migrations))
	}

	first := m.migrations[0]
	if first.Version != 1 {
		t.Errorf("migrations[0].Version = %d, want 1", first.Version)
	}
	if first.Name != "create_incidents" {
		t.Errorf("migrations[0].Name = %q, want %q", first.Name, "create_incidents")
	}
	if first.Up == "" || first.Down == "" {
		t.Error("migrations[0] missing up or down SQL")
	}

	second := m.migrations[1]
	if second.Version != 2 {
		t.Errorf("migrations[1].Version = %d, want 2", second.Version)
	}
	if second.Name != "add_severity" {
		t.Errorf("migrations[1].Name = %q, want %q", second.Name, "add_severity")
	}
}
