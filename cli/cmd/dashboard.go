package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/vigil/cli/internal/output"
	"github.com/instantcocoa/vigil/services/monitor"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard [id]",
	Short: "Show a dashboard layout",
	Long:  "Reads a dashboard layout the agent cached in Redis. Defaults to the operations overview.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := "operations-overview"
		if len(args) == 1 {
			id = args[0]
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := connectCache(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		var dashboard monitor.Dashboard
		if err := client.GetJSON(ctx, monitor.DashboardCacheKeyPrefix+id, &dashboard); err != nil {
			return fmt.Errorf("dashboard %q not available (is the agent running with dashboards enabled?): %w", id, err)
		}

		if cfg.Format == "json" || cfg.Format == "yaml" {
			return output.NewWriter(cfg.Format).Print(dashboard)
		}

		table := output.Table{Headers: []string{"WIDGET", "TYPE", "POSITION", "SIZE"}}
		for _, w := range dashboard.Widgets {
			table.AddRow(
				w.Title,
				string(w.Type),
				fmt.Sprintf("(%d,%d)", w.Position.X, w.Position.Y),
				fmt.Sprintf("%dx%d", w.Position.Width, w.Position.Height),
			)
		}
		cmd.Printf("%s — refreshed %s\n", dashboard.Name, dashboard.LastRefreshedAt.Format(time.RFC3339))
		return output.NewWriter(cfg.Format).Print(table)
	},
}
