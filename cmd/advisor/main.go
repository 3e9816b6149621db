package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"advisor/internal/amqp"
	"advisor/internal/config"
	"advisor/internal/core"
	"advisor/internal/dedup"
	"advisor/internal/engine"
	advhttp "advisor/internal/http"
	"advisor/internal/intent"
	applog "advisor/internal/log"
	"advisor/internal/services"
	"advisor/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting advisor")

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

	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPDecisionQueue, cfg.AMQPAlertQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	var keys dedup.KeyStore
	if cfg.RedisAddr != "" {
		redisStore := dedup.NewRedisStore(cfg.RedisAddr)
		defer redisStore.Close()
		keys = redisStore
		logger.Info("Redis dedup store initialized", "addr", cfg.RedisAddr)
	} else {
		logger.Info("Redis disabled - alert dedup keys fall back to SQLite")
	}

	service := services.NewAdvisorService(repo, publisher, keys, services.Config{
		Metrics: engine.MetricsConfig{TrailingPeriods: cfg.TrailingPeriods},
		Evaluator: engine.EvaluatorConfig{
			Sensitivity:       engine.Sensitivity(cfg.Sensitivity),
			SavingsRateTarget: cfg.SavingsRateTarget,
		},
		AlertCooldown: cfg.AlertCooldown,
		LookaheadDays: cfg.RecurringLookaheadDays,
	})

	router := intent.NewRouter(service, func() core.Date {
		return core.DateOf(time.Now())
	})
	server := advhttp.NewServer(cfg.Port, router, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Shutdown incomplete", "error", err)
	}
	logger.Info("Advisor stopped")
}
