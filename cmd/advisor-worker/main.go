package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"advisor/internal/amqp"
	"advisor/internal/config"
	"advisor/internal/dedup"
	"advisor/internal/engine"
	applog "advisor/internal/log"
	"advisor/internal/storage"
	"advisor/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	logger.Info("Starting advisor-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var publisher worker.AlertPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPDecisionQueue, cfg.AMQPAlertQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled - alerts will be scanned but not published")
	}

	var keys dedup.KeyStore
	if cfg.RedisAddr != "" {
		redisStore := dedup.NewRedisStore(cfg.RedisAddr)
		defer redisStore.Close()
		keys = redisStore
		logger.Info("Redis dedup store initialized", "addr", cfg.RedisAddr)
	}

	sweeper := worker.NewSweepWorker(repo, publisher, keys, worker.Config{
		Interval:      cfg.SweepInterval,
		Concurrency:   cfg.SweepConcurrency,
		Cooldown:      cfg.AlertCooldown,
		LookaheadDays: cfg.RecurringLookaheadDays,
		Metrics:       engine.MetricsConfig{TrailingPeriods: cfg.TrailingPeriods},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Sweep worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Advisor-worker stopped")
}
