package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scalpExecutor/config"
	"scalpExecutor/internal/adapters/logger"
	"scalpExecutor/internal/adapters/sqlite"
)

// NewRootCmd builds the scalpexecutor command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "scalpexecutor",
		Short:         "Executes strategy signals on Binance spot and supervises every open trade",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newServeCmd(),
		newStrategiesCmd(),
		newTradesCmd(),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openStore loads the configuration and opens the trade database. Commands
// that only read or write records do not need exchange credentials.
func openStore() (*config.Config, *logger.StdLogger, *sqlite.Repository, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open db: %w", err)
	}
	return cfg, appLogger, repo, nil
}
