package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/vigil/cli/internal/output"
	"github.com/instantcocoa/vigil/pkg/database"
	"github.com/instantcocoa/vigil/services/monitor"
)

var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "List incidents",
	Long:  "Queries the incident database directly. Requires the postgres storage backend.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := database.ConnectDSN(ctx, cfg.DatabaseDSN())
		if err != nil {
			return fmt.Errorf("failed to connect to the incident database (memory-backend agents keep incidents in process): %w", err)
		}
		defer db.Close()

		status, _ := cmd.Flags().GetString("status")
		severity, _ := cmd.Flags().GetString("severity")
		limit, _ := cmd.Flags().GetInt("limit")

		store := monitor.NewPostgresIncidentStore(db.DB)
		incidents, total, err := store.ListIncidents(ctx, monitor.IncidentQuery{
			Status:   monitor.IncidentStatus(status),
			Severity: monitor.IncidentSeverity(severity),
			Limit:    limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list incidents: %w", err)
		}

		if cfg.Format == "json" || cfg.Format == "yaml" {
			return output.NewWriter(cfg.Format).Print(incidents)
		}

		table := output.Table{Headers: []string{"ID", "SEVERITY", "STATUS", "TITLE", "CREATED"}}
		for _, incident := range incidents {
			id := incident.ID
			if len(id) > 8 {
				id = id[:8]
			}
			table.AddRow(
				id,
				string(incident.Severity),
				string(incident.Status),
				incident.Title,
				incident.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		if err := output.NewWriter(cfg.Format).Print(table); err != nil {
			return err
		}
		if total > len(incidents) {
			cmd.Printf("showing %d of %d incidents\n", len(incidents), total)
		}
		return nil
	},
}

func init() {
	incidentsCmd.Flags().String("status", "", "Filter by status (open, investigating, resolved, closed)")
	incidentsCmd.Flags().String("severity", "", "Filter by severity (low, medium, high, critical)")
	incidentsCmd.Flags().Int("limit", 20, "Maximum incidents to show")
}
