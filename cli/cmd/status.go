package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/vigil/cli/internal/output"
	"github.com/instantcocoa/vigil/pkg/cache"
	"github.com/instantcocoa/vigil/services/monitor"
)

func connectCache(ctx context.Context) (*cache.Client, error) {
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Addr = cfg.RedisAddr
	cacheCfg.Password = cfg.RedisPassword
	cacheCfg.DB = cfg.RedisDB

	client, err := cache.Connect(ctx, cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to reach the agent cache at %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest monitoring snapshot",
	Long:  "Reads the most recent cycle snapshot the agent cached in Redis.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := connectCache(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		var snapshot monitor.CycleSnapshot
		if err := client.GetJSON(ctx, monitor.SnapshotCacheKey, &snapshot); err != nil {
			return fmt.Errorf("no snapshot available (is the agent running?): %w", err)
		}

		if cfg.Format == "json" || cfg.Format == "yaml" {
			return output.NewWriter(cfg.Format).Print(snapshot)
		}

		table := output.Table{Headers: []string{"FIELD", "VALUE"}}
		table.AddRow("Captured", snapshot.Timestamp.Format(time.RFC3339))
		table.AddRow("Cycle", fmt.Sprintf("%d", snapshot.Cycle))
		table.AddRow("Health score", fmt.Sprintf("%d/100", snapshot.HealthScore))
		table.AddRow("Active incidents", fmt.Sprintf("%d", snapshot.ActiveIncidents))
		table.AddRow("SLA compliance", fmt.Sprintf("%.1f%%", snapshot.SLACompliance))
		table.AddRow("Business metrics", fmt.Sprintf("%d", snapshot.Metrics.Business))
		table.AddRow("UX metrics", fmt.Sprintf("%d", snapshot.Metrics.UserExperience))
		table.AddRow("Infra metrics", fmt.Sprintf("%d", snapshot.Metrics.Infrastructure))
		table.AddRow("Traces", fmt.Sprintf("%d (%d spans)", snapshot.Traces, snapshot.Spans))
		table.AddRow("Endpoints", fmt.Sprintf("%d healthy / %d degraded / %d unhealthy",
			snapshot.APIStatus.HealthyEndpoints, snapshot.APIStatus.DegradedEndpoints, snapshot.APIStatus.UnhealthyEndpoints))
		table.AddRow("Security events", fmt.Sprintf("%d", snapshot.Security.TotalEvents))

		return output.NewWriter(cfg.Format).Print(table)
	},
}
