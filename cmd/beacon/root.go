package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "Beacon - tiered metrics retrieval with graceful degradation",
	Long: `Beacon retrieves dashboard metrics through a tiered fallback chain:
a live backend fetch, the local cache with background revalidation, a
durable cache endpoint, and a static fallback table.

Every result is annotated with its provenance (which tier supplied it)
and a freshness classification, so consumers always know how much to
trust a number.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
