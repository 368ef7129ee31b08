package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"prop-risk-engine-go/internal/api"
	"prop-risk-engine-go/internal/config"
	"prop-risk-engine-go/internal/database"
	"prop-risk-engine-go/internal/logger"
	"prop-risk-engine-go/internal/pricefeed"
	"prop-risk-engine-go/internal/risk"
	"prop-risk-engine-go/internal/store"
	"prop-risk-engine-go/internal/trading"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Initialize price oracle
	oracle, err := pricefeed.NewFromConfig(&cfg.PriceFeed, log)
	if err != nil {
		log.Fatal("Failed to initialize price feed", zap.Error(err))
	}
	if err := oracle.Ping(context.Background()); err != nil {
		// Evaluation still works: unpriced positions are marked at entry.
		log.Warn("Price feed is not reachable", zap.String("source", cfg.PriceFeed.Source), zap.Error(err))
	} else {
		log.Info("Successfully connected to price feed.", zap.String("source", cfg.PriceFeed.Source))
	}

	st := store.New(db)
	locks := risk.NewLocker()
	evaluator := risk.NewEvaluator(
		st,
		risk.NewEquityCalculator(oracle, log, cfg.Risk.PriceConcurrency),
		risk.NewDailyWindow(nil),
		locks,
		log,
	)
	svc := trading.NewService(log, &cfg, st, oracle, evaluator, locks)

	server := api.NewServer(&cfg.Server, log, st, evaluator, svc)
	if err := server.Start(); err != nil {
		log.Fatal("Failed to start API server", zap.Error(err))
	}

	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Info("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}

	log.Info("Risk engine has been shut down.")
}
