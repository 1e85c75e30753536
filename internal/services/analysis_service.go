package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/analysis"
	"budgetwatch/internal/core"
	"budgetwatch/internal/store"
)

// EventPublisher publishes analysis outcomes to interested consumers.
// *amqp.Client satisfies it; a nil publisher disables publishing.
type EventPublisher interface {
	PublishRecordAnalyzed(ctx context.Context, msg *amqp.RecordAnalyzedMessage) error
}

// AnalysisService orchestrates record ingestion: it persists the record,
// runs budget evaluation and anomaly detection against the stored history,
// and publishes the outcome. A single mutex serializes the
// append-then-analyze sequence so every analysis sees a consistent history.
type AnalysisService struct {
	mu        sync.Mutex
	store     store.Store
	analyzer  *analysis.Analyzer
	registry  *core.BudgetRegistry
	publisher EventPublisher
	now       func() time.Time
}

func NewAnalysisService(ctx context.Context, st store.Store, analyzer *analysis.Analyzer, publisher EventPublisher) (*AnalysisService, error) {
	s := &AnalysisService{
		store:     st,
		analyzer:  analyzer,
		registry:  core.NewBudgetRegistry(),
		publisher: publisher,
		now:       time.Now,
	}

	if err := s.hydrate(ctx); err != nil {
		return nil, fmt.Errorf("hydrate analysis service: %w", err)
	}

	return s, nil
}

// hydrate rebuilds the in-memory budget registry from the store so that
// limits and categories survive restarts.
func (s *AnalysisService) hydrate(ctx context.Context) error {
	budgets, err := s.store.ListBudgets(ctx)
	if err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}
	for _, b := range budgets {
		if err := s.registry.SetLimit(b.Category, b.Limit); err != nil {
			return fmt.Errorf("restore budget for %q: %w", b.Category, err)
		}
	}

	records, err := s.store.ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	for _, r := range records {
		s.registry.RegisterCategory(r.Category)
	}

	slog.InfoContext(ctx, "Analysis service hydrated",
		"budgets", len(budgets),
		"records", len(records))
	return nil
}

// AddRecord persists a record and analyzes it against the full stored
// history, including the record itself. The returned result carries the
// budget alert for the record's category and its anomaly flag.
func (s *AnalysisService) AddRecord(ctx context.Context, r core.ExpenseRecord) (core.ExpenseRecord, analysis.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := r.Validate(); err != nil {
		return core.ExpenseRecord{}, analysis.Result{}, err
	}
	r.Category = core.NormalizeCategory(r.Category)
	s.registry.RegisterCategory(r.Category)

	id, err := s.store.AppendRecord(ctx, r)
	if err != nil {
		return core.ExpenseRecord{}, analysis.Result{}, fmt.Errorf("append record: %w", err)
	}
	r.ID = id

	history, err := s.store.ListRecords(ctx)
	if err != nil {
		return core.ExpenseRecord{}, analysis.Result{}, fmt.Errorf("list records: %w", err)
	}

	res, err := s.analyzer.OnRecordAdded(r, history, s.registry, s.now())
	if err != nil {
		return core.ExpenseRecord{}, analysis.Result{}, fmt.Errorf("analyze record: %w", err)
	}

	s.publishAnalyzed(ctx, r, res)

	return r, res, nil
}

// SetBudget stores a budget limit and mirrors it into the registry.
func (s *AnalysisService) SetBudget(ctx context.Context, b core.BudgetLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := b.Validate(); err != nil {
		return err
	}
	b.Category = core.NormalizeCategory(b.Category)

	if err := s.store.SetBudget(ctx, b); err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	if err := s.registry.SetLimit(b.Category, b.Limit); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Budget limit set",
		"category", b.Category,
		"limit", core.FormatUnits(b.Limit.Cents))
	return nil
}

// Budgets returns the stored budget limits.
func (s *AnalysisService) Budgets(ctx context.Context) ([]core.BudgetLimit, error) {
	return s.store.ListBudgets(ctx)
}

// Records returns the full stored history.
func (s *AnalysisService) Records(ctx context.Context) ([]core.ExpenseRecord, error) {
	return s.store.ListRecords(ctx)
}

// MonthRecords returns the records for one calendar month.
func (s *AnalysisService) MonthRecords(ctx context.Context, year, month int) ([]core.ExpenseRecord, error) {
	return s.store.ListMonthRecords(ctx, year, month)
}

// Summary aggregates the stored history by month or category.
func (s *AnalysisService) Summary(ctx context.Context, groupBy analysis.GroupBy) ([]analysis.GroupSummary, error) {
	history, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return s.analyzer.Summarize(history, groupBy)
}

// Totals computes grand totals across the stored history.
func (s *AnalysisService) Totals(ctx context.Context) (analysis.Totals, error) {
	history, err := s.store.ListRecords(ctx)
	if err != nil {
		return analysis.Totals{}, fmt.Errorf("list records: %w", err)
	}
	return s.analyzer.GrandTotals(history), nil
}

// Trend computes the rolling daily-average series over the stored history.
func (s *AnalysisService) Trend(ctx context.Context, window int) ([]analysis.TrendPoint, error) {
	history, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return s.analyzer.SpendingTrend(history, window), nil
}

// Anomalies re-scans the stored history and returns the flagged records.
func (s *AnalysisService) Anomalies(ctx context.Context) ([]core.AnomalyFlag, error) {
	history, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return s.analyzer.ScanAnomalies(history)
}

func (s *AnalysisService) publishAnalyzed(ctx context.Context, r core.ExpenseRecord, res analysis.Result) {
	if s.publisher == nil {
		return
	}

	alert := alertForCategory(res.Alerts, r.Category)
	msg := amqp.NewRecordAnalyzedMessage(r.ID, alert, res.Anomaly)
	if err := s.publisher.PublishRecordAnalyzed(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record analyzed message",
			"record_id", r.ID, "error", err)
		// Don't fail the request - the record is saved locally
	}
}

func alertForCategory(alerts []core.AlertResult, category string) core.AlertResult {
	for _, a := range alerts {
		if a.Category == category {
			return a
		}
	}
	return core.AlertResult{Category: category, Level: core.LevelNone}
}
