package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/analysis"
	"budgetwatch/internal/core"
	"budgetwatch/internal/export"
	"budgetwatch/internal/store"
)

// SummaryAppender pushes summary and alert rows to an external report sink.
// *export.SheetsExporter satisfies it; a nil appender disables the sink.
type SummaryAppender interface {
	AppendSummary(ctx context.Context, groupBy analysis.GroupBy, summary []analysis.GroupSummary) error
	AppendAlerts(ctx context.Context, alerts []core.AlertResult) error
}

// ReportStore is the read-only slice of the store the report worker needs:
// the full record history plus the configured budgets.
type ReportStore interface {
	store.RecordReader
	ListBudgets(ctx context.Context) ([]core.BudgetLimit, error)
}

// ReportWorker turns analysis events into exported reports. It reacts to
// analyzed-record messages by refreshing CSV exports, and can also run a
// full export on a schedule.
type ReportWorker struct {
	store    ReportStore
	analyzer *analysis.Analyzer
	csv      *export.CSVExporter
	sheets   SummaryAppender
}

func NewReportWorker(st ReportStore, analyzer *analysis.Analyzer, csv *export.CSVExporter, sheets SummaryAppender) *ReportWorker {
	return &ReportWorker{
		store:    st,
		analyzer: analyzer,
		csv:      csv,
		sheets:   sheets,
	}
}

// HandleAnalyzedMessage processes a single record analyzed message from AMQP.
// Exceeded budgets and anomalies trigger an immediate export so reports
// stay current when something noteworthy happens.
func (w *ReportWorker) HandleAnalyzedMessage(ctx context.Context, msg *amqp.RecordAnalyzedMessage) error {
	slog.InfoContext(ctx, "Processing analyzed message",
		"record_id", msg.RecordID,
		"category", msg.Category,
		"level", msg.Level,
		"anomalous", msg.Anomalous)

	if msg.Level != core.LevelExceeded && !msg.Anomalous {
		return nil
	}

	if _, err := w.ExportNow(ctx); err != nil {
		return fmt.Errorf("export after record %d: %w", msg.RecordID, err)
	}
	return nil
}

// ExportNow writes the current history, summaries, and anomaly list to CSV
// and pushes the category summary to the external sink when configured.
// It returns the paths of the written files.
func (w *ReportWorker) ExportNow(ctx context.Context) ([]string, error) {
	history, err := w.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	var paths []string

	path, err := w.csv.WriteRecords(ctx, history)
	if err != nil {
		return nil, fmt.Errorf("export records: %w", err)
	}
	paths = append(paths, path)

	for _, groupBy := range []analysis.GroupBy{analysis.GroupByMonth, analysis.GroupByCategory} {
		summary, err := w.analyzer.Summarize(history, groupBy)
		if err != nil {
			return nil, fmt.Errorf("summarize by %s: %w", groupBy, err)
		}
		path, err := w.csv.WriteSummary(ctx, groupBy, summary)
		if err != nil {
			return nil, fmt.Errorf("export summary by %s: %w", groupBy, err)
		}
		paths = append(paths, path)
		if groupBy == analysis.GroupByCategory && w.sheets != nil {
			if err := w.sheets.AppendSummary(ctx, groupBy, summary); err != nil {
				slog.ErrorContext(ctx, "Failed to push summary to sheets", "error", err)
				// CSV export succeeded, keep going
			}
		}
	}

	flags, err := w.analyzer.ScanAnomalies(history)
	if err != nil {
		return nil, fmt.Errorf("scan anomalies: %w", err)
	}
	path, err = w.csv.WriteAnomalies(ctx, flags)
	if err != nil {
		return nil, fmt.Errorf("export anomalies: %w", err)
	}
	paths = append(paths, path)

	if w.sheets != nil {
		if err := w.pushAlerts(ctx, history); err != nil {
			slog.ErrorContext(ctx, "Failed to push alerts to sheets", "error", err)
			// CSV export succeeded, keep going
		}
	}

	slog.InfoContext(ctx, "Report export complete",
		"records", len(history),
		"anomalies", len(flags))
	return paths, nil
}

// pushAlerts evaluates every configured budget against the current month and
// appends the results to the external sink, which drops below-warning rows.
func (w *ReportWorker) pushAlerts(ctx context.Context, history []core.ExpenseRecord) error {
	budgets, err := w.store.ListBudgets(ctx)
	if err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}
	if len(budgets) == 0 {
		return nil
	}

	registry := core.NewBudgetRegistry()
	for _, b := range budgets {
		if err := registry.SetLimit(b.Category, b.Limit); err != nil {
			return fmt.Errorf("register budget %s: %w", b.Category, err)
		}
	}

	alerts, err := w.analyzer.EvaluateBudgets(history, registry, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("evaluate budgets: %w", err)
	}
	return w.sheets.AppendAlerts(ctx, alerts)
}
