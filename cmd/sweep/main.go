// Package main provides the budget period sweep entry point. It performs a
// single rolling pass and exits; scheduling is left to external cron.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/funding-ledger/internal/config"
	"github.com/funding-ledger/internal/logging"
	"github.com/funding-ledger/internal/service"
	"github.com/funding-ledger/internal/storage"
)

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "Maximum duration for one sweep pass")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	walletRepo := storage.NewWalletRepository(postgres)
	periodRepo := storage.NewBudgetPeriodRepository(postgres)
	budgetService := service.NewBudgetService(postgres, walletRepo, periodRepo, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rolled, err := budgetService.SweepDuePeriods(ctx, time.Now())
	if err != nil {
		logger.WithError(err).WithField("rolled", rolled).Fatal("Sweep finished with errors")
	}

	logger.WithField("rolled", rolled).Info("Sweep completed")
}
