package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for fetchq.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetchq",
		Short: "Fetch and crawl web resources with composable queries",
		Long: `fetchq fetches web resources and crawls sites breadth-first.

Requests are built from lazy queries: nothing is sent until results are
read, and every response of a run gets a unique fetch id. Crawl results are
stored in a local SQLite database so that later crawls can be compared.

Per-site headers, cookies and crawl limits are read from a .fetchq file
(see 'fetchq init').`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.Bool("log-json", false, "Write logs as JSON")
	flags.StringP("config", "c", "",
		"Site file path (default: .fetchq in the current directory, the XDG config directory or home)")

	cmd.AddCommand(
		NewFetchCmd(),
		NewCrawlCmd(),
		NewHistoryCmd(),
		NewInitCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
