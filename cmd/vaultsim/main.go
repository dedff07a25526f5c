package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "vaultsim",
		Short:        "AMM settlement simulator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a settlement scenario",
		RunE:  runScenario,
	}

	runCmd.Flags().String("scenario", "", "scenario JSON path (built-in demo when unset)")
	runCmd.Flags().String("journal-out", "./data/journal.jsonl", "journal output JSONL path")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for event persistence")
	runCmd.Flags().String("run", "local", "run label for persisted events")
	runCmd.Flags().Int("max-retries", 5, "maximum flush retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial flush retry backoff")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Build a conservation report from a journal",
		RunE:  runReport,
	}

	reportCmd.Flags().String("in", "./data/journal.jsonl", "input journal JSONL")
	reportCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for report persistence")
	reportCmd.Flags().String("run", "local", "run label for persisted rows")
	reportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(reportCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
