package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/analysis"
	"budgetwatch/internal/config"
	"budgetwatch/internal/export"
	apphttp "budgetwatch/internal/http"
	applog "budgetwatch/internal/log"
	"budgetwatch/internal/services"
	"budgetwatch/internal/store"
	"budgetwatch/internal/store/memory"
	"budgetwatch/internal/store/sqlite"
	"budgetwatch/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New("server", applog.ParseLevel(os.Getenv("LOG_LEVEL")))
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Choose storage backend (default: memory)
	var st store.Store
	switch cfg.Backend {
	case "sqlite":
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		st = repo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		st = memory.New()
		logger.Info("Initialized memory backend")
	}

	analyzer := analysis.NewAnalyzer(
		analysis.NewBudgetEvaluator(analysis.Thresholds{
			WarningPct:  cfg.WarningPct,
			CriticalPct: cfg.CriticalPct,
		}),
		analysis.NewDetector(cfg.AnomalyMultiplier, cfg.AnomalyMinSamples),
		cfg.TrendWindowDays,
	)

	// AMQP is optional; without it analysis events stay local
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc, err := services.NewAnalysisService(ctx, st, analyzer, publisher)
	if err != nil {
		logger.Error("Failed to initialize analysis service", "error", err)
		os.Exit(1)
	}

	// Report exports backing GET /export
	csvExporter, err := export.NewCSVExporter(cfg.ExportDir)
	if err != nil {
		logger.Error("Failed to initialize CSV exporter", "error", err, "dir", cfg.ExportDir)
		os.Exit(1)
	}
	var sheetsAppender worker.SummaryAppender
	if cfg.GoogleSpreadsheetID != "" {
		sheetsExporter, err := export.NewSheetsExporter(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Sheets exporter", "error", err)
			os.Exit(1)
		}
		sheetsAppender = sheetsExporter
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}
	reports := worker.NewReportWorker(st, analyzer, csvExporter, sheetsAppender)

	srv := apphttp.NewServer(":"+cfg.Port, svc, reports)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting budgetwatch server", "port", cfg.Port, "backend", cfg.Backend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
