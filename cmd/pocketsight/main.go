package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"pocketsight/internal/amqp"
	"pocketsight/internal/backend"
	"pocketsight/internal/cache"
	"pocketsight/internal/cli"
	apphttp "pocketsight/internal/http"
	"pocketsight/internal/ledger"
	"pocketsight/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	// Upstream ledger client
	ledgerClient, err := ledger.NewClient(cfg.LedgerAPIURL, cfg.LedgerAPIToken,
		ledger.WithPageLimit(cfg.LedgerPageLimit),
		ledger.WithMaxPages(cfg.LedgerMaxPages))
	if err != nil {
		logger.Error("Failed to initialize ledger client", "error", err, "url", cfg.LedgerAPIURL)
		os.Exit(1)
	}

	// Target and preference store (memory or sqlite)
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("Initialized data backend", "backend", cfg.DataBackend)

	// Optional refresh publishing: without a broker the report worker just
	// runs on its schedule.
	var publisher services.RefreshPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, report refresh notifications disabled", "error", err)
		} else {
			publisher = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - report refresh notifications will not be published")
	}

	insightService := services.NewInsightService(ledgerClient, result.Store, result.Store, publisher, services.Options{
		HistoryMonths: cfg.DefaultHistoryMonths,
		AverageMonths: cfg.DefaultAverageMonths,
		CacheTTL:      cfg.CacheTTL,
		Currency:      cfg.Currency,
	})

	// Periodic eviction of expired snapshots
	cacheManager := cache.NewManager()
	cacheManager.Register(insightService.SnapshotCache())
	cacheManager.StartCleanup(cfg.CacheTTL)

	srv := apphttp.NewServer(":"+cfg.Port, insightService)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	})

	logger.Info("Starting pocketsight server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
