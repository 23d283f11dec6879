// Package cmd contains CLI commands.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/instantcocoa/vigil/cli/internal/config"
)

var (
	cfg     *config.Config
	format  string
	verbose bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Vigil CLI - monitoring and observability agent",
	Long: `Vigil watches services: traces, metrics, SLA compliance, and incidents.

The agent caches its latest state in Redis; this CLI reads it back.
Incident queries talk to the incident database directly.

Examples:
  # Show the latest monitoring snapshot
  vigil status

  # Render the latest operations report
  vigil report

  # List open incidents (postgres backend)
  vigil incidents --status open

  # Dump a dashboard layout as JSON
  vigil dashboard -o json
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.DefaultConfig()
		if format != "" {
			cfg.Format = format
		}
		cfg.Verbose = verbose
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&format, "output", "o", "", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(incidentsCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints version info.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("vigil version 0.1.0")
	},
}
