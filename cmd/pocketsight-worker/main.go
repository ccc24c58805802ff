package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pocketsight/internal/amqp"
	"pocketsight/internal/backend"
	"pocketsight/internal/cli"
	gsheet "pocketsight/internal/export/google"
	"pocketsight/internal/ledger"
	"pocketsight/internal/ports"
	"pocketsight/internal/services"
	"pocketsight/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting pocketsight-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	// Upstream ledger client for report computation
	ledgerClient, err := ledger.NewClient(cfg.LedgerAPIURL, cfg.LedgerAPIToken,
		ledger.WithPageLimit(cfg.LedgerPageLimit),
		ledger.WithMaxPages(cfg.LedgerMaxPages))
	if err != nil {
		logger.Error("Failed to initialize ledger client", "error", err, "url", cfg.LedgerAPIURL)
		os.Exit(1)
	}

	// Target store shared with the server
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
	defer func() {
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	}()

	// Google Sheets exporter (optional)
	var exporter ports.ReportExporter
	if cfg.GoogleSpreadsheetID != "" {
		sheetsExporter, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = sheetsExporter
		logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	insightService := services.NewInsightService(ledgerClient, result.Store, result.Store, nil, services.Options{
		HistoryMonths: cfg.DefaultHistoryMonths,
		AverageMonths: cfg.DefaultAverageMonths,
		CacheTTL:      cfg.CacheTTL,
		Currency:      cfg.Currency,
	})

	refreshWorker := worker.NewRefreshWorker(insightService, exporter, cfg.RefreshInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Consume refresh requests when a broker is configured
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			err := amqpClient.ConsumeReportRefresh(ctx, func(msg *amqp.ReportRefreshMessage) error {
				return refreshWorker.HandleRefreshMessage(ctx, msg)
			})
			if err != nil && err != context.Canceled {
				logger.Error("Message consumption failed", "error", err)
				cancel()
			}
		}()
		logger.Info("Consuming report refresh messages", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - relying on scheduled refresh only")
	}

	// Scheduled refresh keeps the exported report current even when no
	// refresh messages arrive.
	go func() {
		if err := refreshWorker.RunScheduled(ctx); err != nil && err != context.Canceled {
			logger.Error("Scheduled refresh stopped", "error", err)
			cancel()
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give in-flight refreshes a moment to finish
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
