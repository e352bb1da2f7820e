// Package main provides the CLI entry point for logsift.
// Two subcommands cover the two halves of the system:
// 1. ingest - run the collector inputs and the ingestion pipeline
// 2. query  - run the HTTP API for ingest, search and statistics
package main

import (
	"fmt"
	"os"

	"github.com/logsift/logsift/internal/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "logsift",
		Short: "A log collection, template mining and analysis service",
		Long: `Logsift collects log lines from files, the forward protocol and OTLP,
normalizes them into structured entries, mines recurring message templates
and stores everything in Elasticsearch for filtered search and statistics.`,
	}

	rootCmd.AddCommand(commands.NewIngestCommand())
	rootCmd.AddCommand(commands.NewQueryCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
