package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/instantcocoa/vigil/pkg/cache"
	"github.com/instantcocoa/vigil/pkg/config"
	"github.com/instantcocoa/vigil/pkg/database"
	"github.com/instantcocoa/vigil/pkg/telemetry"
	"github.com/instantcocoa/vigil/services/monitor"
)

const serviceName = "monitor"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load(serviceName)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup telemetry
	tp, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:     serviceName,
		ServiceVersion:  cfg.Version,
		Environment:     cfg.Environment,
		OTLPEndpoint:    cfg.OTLPEndpoint,
		TracingEnabled:  cfg.TracingEnabled,
		TracingSampling: cfg.TracingSampling,
		LogLevel:        cfg.LogLevel,
		LogFormat:       cfg.LogFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer tp.Shutdown(ctx)

	logger := tp.Logger()

	// Database connection: incident persistence and the connection probe
	var db *database.DB
	if cfg.UsePostgresStorage() {
		db, err = database.ConnectDSN(ctx, cfg.DatabaseDSN())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		db = db.WithLogger(logger)

		migrator := database.NewMigrator(db, "public").WithLogger(logger)
		if err := migrator.LoadMigrations(monitor.Migrations, monitor.MigrationsDir); err != nil {
			return fmt.Errorf("failed to load migrations: %w", err)
		}
		if err := migrator.Up(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("connected to postgres database")
	}

	// Redis: memory probe plus snapshot persistence for the CLI
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Addr = cfg.RedisAddr
	cacheCfg.Password = cfg.RedisPassword
	cacheCfg.DB = cfg.RedisDB
	redis, err := cache.Connect(ctx, cacheCfg)
	if err != nil {
		logger.Warn("redis unavailable, cache probe and snapshot persistence disabled", "error", err)
		redis = nil
	} else {
		defer redis.Close()
		redis = redis.WithLogger(logger)
	}

	// Incident storage backend
	var incidentStore monitor.IncidentStore
	switch {
	case cfg.UsePostgresStorage():
		incidentStore = monitor.NewPostgresIncidentStore(db.DB)
	default:
		incidentStore = monitor.NewMemoryIncidentStore()
	}
	logger.Info("initialized storage backend", "backend", cfg.StorageBackend)

	metricStore := monitor.NewMemoryMetricStore()

	// Span sink: re-export finished spans through OTel when tracing is on
	var sink monitor.SpanSink
	if tp.TracingEnabled() {
		sink = monitor.NewOTelSpanSink(tp.Tracer(serviceName))
	}

	notifier := monitor.NewSlogNotifier(logger)
	reporter := monitor.NewSlogReporter(logger)

	incidents := monitor.NewIncidentManager(incidentStore, notifier, logger)
	tracer := monitor.NewTracer(sink, logger)
	metrics := monitor.NewMetricService(metricStore, incidents, logger)

	var dbProbe monitor.ConnectionCounter
	if db != nil {
		dbProbe = db
	}
	var cacheProbe monitor.MemoryProbe
	var state monitor.StateCache
	if redis != nil {
		cacheProbe = redis
		state = redis
	}

	infra := monitor.NewInfrastructureCollector(metricStore, incidents, dbProbe, cacheProbe, logger)
	prober := monitor.NewHTTPProber(cfg.ProbeEndpoints, cfg.ExternalCallTimeout, logger)
	sla := monitor.NewSLAEvaluator(prober, incidents, logger)
	anomaly := monitor.NewAnomalyDetector(incidents, logger)
	dashboards := monitor.NewDashboardRegistry()

	agent := monitor.NewAgent(monitor.AgentConfig{
		CycleInterval:          cfg.CycleInterval,
		InfrastructureInterval: cfg.InfrastructureInterval,
		SLAInterval:            cfg.SLAInterval,
		RetentionSweepInterval: cfg.RetentionSweepInterval,
		RetentionPeriod:        cfg.RetentionPeriod(),
		ExternalCallTimeout:    cfg.ExternalCallTimeout,
		ProbeInterval:          cfg.ProbeInterval,
		DashboardsEnabled:      cfg.DashboardsEnabled,
		PredictiveEnabled:      cfg.PredictiveEnabled,
	}, monitor.AgentDeps{
		Tracer:     tracer,
		Metrics:    metrics,
		Infra:      infra,
		SLA:        sla,
		Anomaly:    anomaly,
		Incidents:  incidents,
		Dashboards: dashboards,
		API:        prober,
		Security:   &monitor.StaticSecurityMonitor{},
		Reporter:   reporter,
		State:      state,
		Store:      metricStore,
	}, logger)

	if err := agent.Activate(ctx); err != nil {
		return fmt.Errorf("failed to activate agent: %w", err)
	}

	logger.Info("monitoring agent running",
		"env", cfg.Environment,
		"probe_endpoints", len(cfg.ProbeEndpoints),
	)

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("shutting down", "signal", sig.String())
	agent.Deactivate()
	return nil
}
