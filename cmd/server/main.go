// Package main provides the API server entry point for the funding ledger service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/funding-ledger/internal/api"
	"github.com/funding-ledger/internal/config"
	"github.com/funding-ledger/internal/logging"
	"github.com/funding-ledger/internal/service"
	"github.com/funding-ledger/internal/storage"
)

func main() {
	log.Println("Funding Ledger API Server starting...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize repositories
	profileRepo := storage.NewProfileRepository(postgres)
	projectRepo := storage.NewProjectRepository(postgres)
	walletRepo := storage.NewWalletRepository(postgres)
	txRepo := storage.NewTransactionRepository(postgres)
	periodRepo := storage.NewBudgetPeriodRepository(postgres)
	milestoneRepo := storage.NewMilestoneRepository(postgres)
	postRepo := storage.NewPostRepository(postgres)

	// Initialize services
	logger.Info("Initializing services...")

	refValidator := service.NewReferenceValidator(profileRepo, projectRepo, postRepo, walletRepo, logger)
	budgetService := service.NewBudgetService(postgres, walletRepo, periodRepo, logger)
	profileService := service.NewProfileService(postgres, profileRepo, refValidator, logger)
	projectService := service.NewProjectService(postgres, projectRepo, refValidator, logger)
	walletService := service.NewWalletService(postgres, walletRepo, refValidator, budgetService, cfg.Ledger.MaxActiveWallets, logger)
	ledgerService := service.NewLedgerService(postgres, txRepo, projectRepo, walletRepo, milestoneRepo, refValidator, budgetService, logger)
	postService := service.NewPostService(postgres, postRepo, profileRepo, refValidator, redis, cfg.Ledger.PostsPerHour, cfg.Ledger.TimelineCacheTTL, logger)
	balanceService := service.NewBalanceService(walletRepo, redis, nil, cfg.Ledger.BalanceCooldown, logger)
	statsService := service.NewStatsService(txRepo, projectRepo, logger)

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		ActorRPS:        cfg.RateLimit.ActorRPS,
		Burst:           cfg.RateLimit.Burst,
	}

	server := api.NewServer(
		serverConfig,
		profileService,
		projectService,
		walletService,
		ledgerService,
		postService,
		budgetService,
		balanceService,
		statsService,
		milestoneRepo,
		postgres,
	)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
