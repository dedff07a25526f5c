package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultsim/internal/config"
	"vaultsim/internal/journal"
	"vaultsim/internal/journal/postgres"
	"vaultsim/internal/scenario"
)

func runScenario(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	doc := scenario.Demo()
	if cfg.Scenario != "" {
		doc, err = scenario.Load(cfg.Scenario)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("scenario start",
		zap.String("name", doc.Name),
		zap.String("scenario", cfg.Scenario),
		zap.Int("tokens", len(doc.Tokens)),
		zap.Int("pools", len(doc.Pools)),
		zap.Int("steps", len(doc.Steps)),
		zap.String("journal_out", cfg.JournalOut),
	)

	runner := scenario.NewRunner(doc, logger)
	if err := runner.Run(ctx); err != nil {
		return err
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN, cfg.Run)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.PutEventsContext(ctx, runner.Journal().Events()); err != nil {
			return fmt.Errorf("persist events: %w", err)
		}
	}

	sink := journal.NewJsonlSink(cfg.JournalOut)
	if err := journal.FlushWithRetry(ctx, runner.Journal(), sink, cfg.MaxRetries, cfg.RetryBackoff); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}

	logger.Info("scenario done", zap.String("name", doc.Name))
	return nil
}
