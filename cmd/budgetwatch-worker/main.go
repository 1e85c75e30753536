package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/analysis"
	"budgetwatch/internal/config"
	"budgetwatch/internal/export"
	applog "budgetwatch/internal/log"
	"budgetwatch/internal/store/memory"
	"budgetwatch/internal/store/sqlite"
	"budgetwatch/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New("worker", applog.ParseLevel(os.Getenv("LOG_LEVEL")))
	applog.SetDefault(logger)

	logger.Info("Starting budgetwatch-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The worker reads the same store the server writes to; the sqlite
	// backend is the expected deployment, memory only serves local runs.
	var st worker.ReportStore
	switch cfg.Backend {
	case "sqlite":
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		st = repo
	default:
		logger.Warn("Memory backend shares no data with the server process", "backend", cfg.Backend)
		st = memory.New()
	}

	analyzer := analysis.NewAnalyzer(
		analysis.NewBudgetEvaluator(analysis.Thresholds{
			WarningPct:  cfg.WarningPct,
			CriticalPct: cfg.CriticalPct,
		}),
		analysis.NewDetector(cfg.AnomalyMultiplier, cfg.AnomalyMinSamples),
		cfg.TrendWindowDays,
	)

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
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	reportWorker := worker.NewReportWorker(st, analyzer, csvExporter, sheetsAppender)

	g, gctx := errgroup.WithContext(ctx)

	// Consume analysis events when a broker is configured
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			return amqpClient.ConsumeRecordAnalyzed(gctx, func(msg *amqp.RecordAnalyzedMessage) error {
				return reportWorker.HandleAnalyzedMessage(gctx, msg)
			})
		})
	} else {
		logger.Info("AMQP disabled - running scheduled exports only")
	}

	// Periodic full export regardless of broker traffic
	g.Go(func() error {
		ticker := time.NewTicker(cfg.ExportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if _, err := reportWorker.ExportNow(gctx); err != nil {
					logger.Error("Scheduled export failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker shutdown complete")
}
