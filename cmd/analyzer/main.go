package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rk-analyzer/internal/analyzer"
	"github.com/rk-analyzer/internal/config"
	"github.com/rk-analyzer/internal/db"
	"github.com/rk-analyzer/internal/logging"
	"github.com/rk-analyzer/internal/progress"
	"github.com/rk-analyzer/internal/store/pgstore"
)

const version = "0.1.0"

var (
	// Process settings and logger, set before any subcommand runs
	settings config.Settings
	logger   *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "analyzer",
		Short: "Dataset readiness analyzer",
		Long: `Computes per-field quality metrics of user datasets, resolves their
administrative hierarchy and derives the readiness flags stored with each dataset.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present
			if err := config.LoadEnv(); err != nil {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			settings = config.FromEnv()

			var err error
			logger, err = logging.New(settings.LogLevel)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				logger.Sync()
			}
		},
	}

	// Add subcommands
	rootCmd.AddCommand(createAnalyzeCmd())
	rootCmd.AddCommand(createAnalyzeAllCmd())
	rootCmd.AddCommand(createAnalyzeFileCmd())
	rootCmd.AddCommand(createSuggestRolesCmd())
	rootCmd.AddCommand(createLoadCmd())
	rootCmd.AddCommand(createMigrateCmd())
	rootCmd.AddCommand(createPingCmd())
	rootCmd.AddCommand(createServeCmd())

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}

// openStore connects to PostgreSQL
func openStore(ctx context.Context) (*db.Connection, *pgstore.Store, error) {
	conn, err := db.NewConnection(ctx, settings.Database)
	if err != nil {
		return nil, nil, err
	}
	return conn, pgstore.New(conn.DB, settings.Database, logger), nil
}

// newAnalyzer builds an analyzer over the PostgreSQL store, resolving against
// the stored registry when one was seeded
func newAnalyzer(ctx context.Context, st *pgstore.Store, sink progress.Sink) (*analyzer.Analyzer, error) {
	env, err := analyzer.NewEnv(settings, logger)
	if err != nil {
		return nil, err
	}
	a := analyzer.New(env, st, sink)

	registry, err := st.LoadRegistry(ctx)
	if err != nil {
		logger.Warn("Registry not readable, using the dictionary", zap.Error(err))
		return a, nil
	}
	if len(registry) > 0 {
		a = a.WithRegistry(registry)
	}
	return a, nil
}

// progressSink records progress in the tracker, the log and the progress file
func progressSink(tracker *progress.Tracker) progress.Sink {
	if settings.ProgressFile == "" {
		return progress.Multi{tracker, progress.NewLogSink(logger)}
	}
	return progress.Multi{progress.NewFileSink(settings.ProgressFile, tracker, logger), progress.NewLogSink(logger)}
}
