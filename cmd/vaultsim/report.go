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
	"vaultsim/internal/report"
)

func runReport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	records, err := journal.ReadJsonl(cfg.Input)
	if err != nil {
		return err
	}

	rep, err := report.Build(records)
	if err != nil {
		return err
	}

	for _, flow := range rep.Flows() {
		logger.Info("currency flow",
			zap.String("currency", flow.Currency),
			zap.String("net_posted", flow.NetPosted.String()),
			zap.String("settled", flow.Settled.String()),
			zap.String("taken", flow.Taken.String()),
			zap.String("residual", flow.Residual().String()),
			zap.Bool("conserved", flow.Conserved()),
		)
	}
	logger.Info("report summary",
		zap.Int("events", len(records)),
		zap.Uint64("swaps", rep.SwapCount()),
		zap.Bool("conserved", rep.Conserved()),
	)

	if cfg.PGDSN != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := postgres.NewStore(ctx, cfg.PGDSN, cfg.Run)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := rep.Persist(ctx, store); err != nil {
			return err
		}
	}

	if !rep.Conserved() {
		return fmt.Errorf("conservation violated")
	}
	return nil
}
