// Package main provides the entry point for the tender ingest CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tender_agent",
	Short: "Procurement snapshot ingestion",
	Long: `tender_agent captures tender pages from the procurement portal, turns the saved
HTML snapshots into database records and downloads the files they reference.

Configuration can be loaded from a JSON file using --config. Environment
variables fill unset values and command-line flags override both.`,
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
