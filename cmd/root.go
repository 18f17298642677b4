// Package cmd wires the storemind CLI.
//
// Commands:
//
//	storemind serve           - run the HTTP API server
//	storemind ingest <path>   - index knowledge documents
//	storemind ask <query>     - one-shot question from the terminal
//	storemind version         - show version information
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/akiyama0/storemind/internal/log"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "storemind",
		Short: "storemind - AI assistant for store operations",
		Long: `storemind answers questions about a store's daily reports, sales,
customer claims and company manuals, backed by retrieval over the
store's own records.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newIngestCmd())
	root.AddCommand(newAskCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the CLI. Called from main.
func Execute() error {
	return NewRootCmd().Execute()
}

// initLogger builds the process logger. DEBUG in the environment lowers the
// level; logs go to stderr so stdout stays clean for command output.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.New(cfg)
}
