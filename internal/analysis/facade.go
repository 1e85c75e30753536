package analysis

import (
	"fmt"
	"sort"
	"time"

	"budgetwatch/internal/core"
)

const (
	GroupByMonth    GroupBy = "month"
	GroupByCategory GroupBy = "category"
)

type (
	// GroupBy selects the summary grouping axis.
	GroupBy string

	// Result is the combined outcome of analyzing one committed record.
	Result struct {
		Alerts  []core.AlertResult
		Anomaly core.AnomalyFlag
	}

	// GroupSummary is one row of an aggregate report: total, record count
	// and mean amount for a month or category key.
	GroupSummary struct {
		Key   string
		Sum   core.Money
		Count int
		Mean  core.Money
	}

	// Totals is the grand-total footer of a report.
	Totals struct {
		Total        core.Money
		SpendDays    int
		AverageDaily core.Money
	}

	// TrendPoint is one day of the rolling spending trend.
	TrendPoint struct {
		Day     string
		Average core.Money
	}
)

// DefaultTrendWindow is the rolling window, in days, used when neither the
// caller nor the configuration picks one.
const DefaultTrendWindow = 7

// Analyzer composes the budget evaluator and anomaly detector behind the
// single entry point callers use when a record is committed.
type Analyzer struct {
	budgets     *BudgetEvaluator
	anomalies   *Detector
	trendWindow int
}

// NewAnalyzer wires the two collaborators together. trendWindow is the
// default window for SpendingTrend; zero falls back to DefaultTrendWindow.
func NewAnalyzer(budgets *BudgetEvaluator, anomalies *Detector, trendWindow int) *Analyzer {
	if trendWindow <= 0 {
		trendWindow = DefaultTrendWindow
	}
	return &Analyzer{budgets: budgets, anomalies: anomalies, trendWindow: trendWindow}
}

// OnRecordAdded evaluates the record's category budget for the month
// containing now and checks the record against its category baseline.
// history must already include the just-added record so it counts toward
// the month's spend; the detector excludes it from its own baseline by ID.
func (a *Analyzer) OnRecordAdded(record core.ExpenseRecord, history []core.ExpenseRecord, registry *core.BudgetRegistry, now time.Time) (Result, error) {
	if err := record.Validate(); err != nil {
		return Result{}, fmt.Errorf("validate record: %w", err)
	}

	alert, err := a.budgets.Evaluate(record.Category, history, registry, now)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate budget: %w", err)
	}

	flag, err := a.anomalies.Detect(record, history)
	if err != nil {
		return Result{}, fmt.Errorf("detect anomaly: %w", err)
	}

	return Result{Alerts: []core.AlertResult{alert}, Anomaly: flag}, nil
}

// AnalyzeBatch runs OnRecordAdded for each record in input order, growing
// the history as it goes. Results keep the processing order; they are never
// reordered by severity.
//
// Records that have not been stored yet arrive without IDs. The detector
// excludes the record under test from its baseline by ID, so unassigned
// records get provisional IDs for the duration of the batch; the returned
// flags carry the original IDs.
func (a *Analyzer) AnalyzeBatch(records []core.ExpenseRecord, history []core.ExpenseRecord, registry *core.BudgetRegistry, now time.Time) ([]Result, error) {
	working := make([]core.ExpenseRecord, len(history), len(history)+len(records))
	copy(working, history)

	var nextID int64
	for _, r := range working {
		if r.ID > nextID {
			nextID = r.ID
		}
	}
	for _, r := range records {
		if r.ID > nextID {
			nextID = r.ID
		}
	}

	results := make([]Result, 0, len(records))
	for _, r := range records {
		origID := r.ID
		if r.ID == 0 {
			nextID++
			r.ID = nextID
		}
		working = append(working, r)
		res, err := a.OnRecordAdded(r, working, registry, now)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", origID, err)
		}
		res.Anomaly.RecordID = origID
		results = append(results, res)
	}
	return results, nil
}

// EvaluateBudgets evaluates every budgeted category against the month
// containing now and returns the results sorted by category.
func (a *Analyzer) EvaluateBudgets(history []core.ExpenseRecord, registry *core.BudgetRegistry, now time.Time) ([]core.AlertResult, error) {
	limits := registry.Limits()
	alerts := make([]core.AlertResult, 0, len(limits))
	for _, b := range limits {
		alert, err := a.budgets.Evaluate(b.Category, history, registry, now)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", b.Category, err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// Summarize aggregates the full history into per-month or per-category
// rows with sum, count and mean. Pure aggregation, no alerting.
func (a *Analyzer) Summarize(history []core.ExpenseRecord, groupBy GroupBy) ([]GroupSummary, error) {
	keyOf, err := groupKeyFunc(groupBy)
	if err != nil {
		return nil, err
	}

	sums := make(map[string]int64)
	counts := make(map[string]int)
	for _, r := range history {
		k := keyOf(r)
		sums[k] += r.Amount.Cents
		counts[k]++
	}

	out := make([]GroupSummary, 0, len(sums))
	for k, sum := range sums {
		n := counts[k]
		out = append(out, GroupSummary{
			Key:   k,
			Sum:   core.Money{Cents: sum},
			Count: n,
			Mean:  core.Money{Cents: roundDiv(sum, int64(n))},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// GrandTotals computes the all-time total and the average spend across
// distinct days that saw at least one record.
func (a *Analyzer) GrandTotals(history []core.ExpenseRecord) Totals {
	var total int64
	perDay := make(map[string]int64)
	for _, r := range history {
		total += r.Amount.Cents
		perDay[r.Date.DayKey()] += r.Amount.Cents
	}

	t := Totals{Total: core.Money{Cents: total}, SpendDays: len(perDay)}
	if len(perDay) > 0 {
		t.AverageDaily = core.Money{Cents: roundDiv(total, int64(len(perDay)))}
	}
	return t
}

// SpendingTrend computes a rolling mean of daily spend totals over the given
// window, falling back to the analyzer's configured default when window is
// zero. Days without records count as zero. Points are emitted only once a
// full window of days is available.
func (a *Analyzer) SpendingTrend(history []core.ExpenseRecord, window int) []TrendPoint {
	if window <= 0 {
		window = a.trendWindow
	}
	if len(history) == 0 {
		return nil
	}

	first, last := history[0].Date.Time, history[0].Date.Time
	perDay := make(map[string]int64)
	for _, r := range history {
		perDay[r.Date.DayKey()] += r.Amount.Cents
		if r.Date.Before(first) {
			first = r.Date.Time
		}
		if r.Date.After(last) {
			last = r.Date.Time
		}
	}

	var days []string
	var totals []int64
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		days = append(days, key)
		totals = append(totals, perDay[key])
	}

	var points []TrendPoint
	var sum int64
	for i := range totals {
		sum += totals[i]
		if i >= window {
			sum -= totals[i-window]
		}
		if i >= window-1 {
			points = append(points, TrendPoint{
				Day:     days[i],
				Average: core.Money{Cents: roundDiv(sum, int64(window))},
			})
		}
	}
	return points
}

// ScanAnomalies checks every record in the history against its category
// baseline and returns the flags in record order. Used for on-demand
// reporting over an existing history.
func (a *Analyzer) ScanAnomalies(history []core.ExpenseRecord) ([]core.AnomalyFlag, error) {
	flags := make([]core.AnomalyFlag, 0)
	for _, r := range history {
		flag, err := a.anomalies.Detect(r, history)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", r.ID, err)
		}
		if flag.Anomalous {
			flags = append(flags, flag)
		}
	}
	return flags, nil
}

func groupKeyFunc(groupBy GroupBy) (func(core.ExpenseRecord) string, error) {
	switch groupBy {
	case GroupByMonth:
		return func(r core.ExpenseRecord) string { return r.Date.MonthKey() }, nil
	case GroupByCategory:
		return func(r core.ExpenseRecord) string { return core.NormalizeCategory(r.Category) }, nil
	default:
		return nil, fmt.Errorf("unknown grouping %q: must be month or category", groupBy)
	}
}

// roundDiv divides cents with half-up rounding.
func roundDiv(sum, n int64) int64 {
	if n == 0 {
		return 0
	}
	neg := sum < 0
	if neg {
		sum = -sum
	}
	q := (sum + n/2) / n
	if neg {
		return -q
	}
	return q
}
