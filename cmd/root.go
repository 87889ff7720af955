package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "billtracker",
	Short: "Puerto Rico legislative bill tracker",
	Long: `billtracker serves the bill tracker API, imports bills filed in SUTRA
into PostgreSQL, and runs the built-in SUTRA scraper.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
