package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"student-wallet-service/config"
	"student-wallet-service/internal/adapter/gateway"
	httpHandler "student-wallet-service/internal/adapter/http/handler"
	pgStorage "student-wallet-service/internal/adapter/storage/postgres"
	redisStorage "student-wallet-service/internal/adapter/storage/redis"
	"student-wallet-service/internal/core/ports"
	"student-wallet-service/internal/metrics"
	"student-wallet-service/internal/service"
	"student-wallet-service/internal/worker"
	"student-wallet-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Student Wallet Service")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if err := pgStorage.RunMigrations(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Prometheus collectors
	metrics.Init()

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	projectionRepo := pgStorage.NewFeeProjectionRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	resultCache := redisStorage.NewResultCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Gateway integration
	gatewayClient := gateway.NewClient(cfg.Gateway, nil, log)
	verifier := gateway.NewSignatureVerifier(cfg.Gateway.SecretKey)

	// Worker pool for the reconciliation fan-out
	taskPool := worker.NewPool(cfg.Jobs.Workers)

	// Initialize business services
	ledgerSvc := service.NewLedgerService(walletRepo, txRepo, resultCache, transactor, log)
	reconciliationSvc := service.NewReconciliationService(walletRepo, txRepo, transactor, taskPool, log)
	feeProjectionSvc := service.NewFeeProjectionService(txRepo, projectionRepo, cfg.Jobs.FeeSyncBatchSize, log)

	// Background job scheduler
	scheduler := service.NewScheduler(
		reconciliationSvc,
		feeProjectionSvc,
		cfg.Jobs.ReconcileInterval,
		cfg.Jobs.FeeSyncInterval,
		log,
	)
	scheduler.Start()

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:         ledgerSvc,
		ReconciliationSvc: reconciliationSvc,
		FeeProjectionSvc:  feeProjectionSvc,
		GatewayClient:     gatewayClient,
		Verifier:          verifier,
		RateLimitStore:    rateLimitStore,
		HealthCheckers:    []ports.HealthChecker{pgHealth, redisHealth},
		ServiceAuthSecret: cfg.Auth.ServiceTokenSecret,
		ServiceAuthIssuer: cfg.Auth.Issuer,
		Logger:            log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	scheduler.Stop()
	taskPool.Stop()

	log.Info().Msg("Server exited")
}
