// Package cli implements the pulse command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configPath string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "pulse",
	Version: Version,
	Short:   "Event-driven delivery tracking for software projects",
	Long: `Pulse pulls demand, defect, and effort data out of the systems a
project already uses (Jira, Trello, Harvest), normalizes it into daily
summaries, and tracks each ingestion run as a load event with per-subsystem
outcomes and project health indicators.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "pulse.yaml", "path to the configuration file")
}
