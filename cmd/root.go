// Package cmd defines and implements the CLI commands for the weather harvester.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weathercrawler",
		Short: "Harvests current weather readings for every province.",
		Long: `weathercrawler walks each province's listing page on tianqi.moji.com,
follows the hot-city links it finds, and prints the area name and current
temperature from every city page. Fetches run under a bounded permit pool
with a fixed politeness delay.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newHarvestCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
