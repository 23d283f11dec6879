package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/vigil/services/monitor"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the latest operations report",
	Long:  "Reads the plain-text report the agent last rendered and cached in Redis.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := connectCache(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		report, err := client.Get(ctx, monitor.ReportCacheKey)
		if err != nil {
			return fmt.Errorf("failed to read report: %w", err)
		}
		if report == "" {
			return fmt.Errorf("no report available (is the agent running?)")
		}

		cmd.Print(report)
		return nil
	},
}
