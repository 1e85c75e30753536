// Package analysis implements the budget evaluation and anomaly detection
// engine: spend-to-limit alerting per category and month, statistical
// outlier flagging of individual records, and reporting aggregates.
//
// Everything in this package is a pure computation over the data handed in.
// No state is kept between calls and nothing is mutated, so results are
// recomputed fresh on every evaluation and alerts can never go stale.
package analysis

import (
	"fmt"
	"time"

	"budgetwatch/internal/core"
)

// Thresholds carries the configurable alert tier cutoffs as percentages of
// the monthly limit. The exceeded tier is always 100 and not configurable.
type Thresholds struct {
	WarningPct  float64
	CriticalPct float64
}

// DefaultThresholds returns the standard 60/80 tier cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{WarningPct: 60, CriticalPct: 80}
}

func (t Thresholds) Validate() error {
	if t.WarningPct <= 0 || t.CriticalPct <= 0 {
		return fmt.Errorf("thresholds must be positive, got warning=%.1f critical=%.1f", t.WarningPct, t.CriticalPct)
	}
	if t.WarningPct >= t.CriticalPct {
		return fmt.Errorf("warning threshold %.1f must be below critical threshold %.1f", t.WarningPct, t.CriticalPct)
	}
	if t.CriticalPct > 100 {
		return fmt.Errorf("critical threshold %.1f must not exceed 100", t.CriticalPct)
	}
	return nil
}

// BudgetEvaluator computes monthly spend-to-limit ratios and maps them onto
// alert levels.
type BudgetEvaluator struct {
	thresholds Thresholds
}

func NewBudgetEvaluator(t Thresholds) *BudgetEvaluator {
	if t == (Thresholds{}) {
		t = DefaultThresholds()
	}
	return &BudgetEvaluator{thresholds: t}
}

// Evaluate sums the category's spend for the calendar month containing now
// and grades it against the registry's limit. A missing or zero limit means
// no budget is configured for the category: the result carries level none
// and no error. Tiers are checked highest first so the strongest matching
// level always wins.
func (e *BudgetEvaluator) Evaluate(category string, records []core.ExpenseRecord, registry *core.BudgetRegistry, now time.Time) (core.AlertResult, error) {
	cat := core.NormalizeCategory(category)
	if cat == "" {
		return core.AlertResult{}, core.ErrEmptyCategory
	}

	var spent int64
	for _, r := range records {
		if core.NormalizeCategory(r.Category) != cat {
			continue
		}
		if r.Amount.Cents < 0 {
			return core.AlertResult{}, fmt.Errorf("record %d: %w", r.ID, core.ErrNegativeAmount)
		}
		if !r.Date.SameMonth(now) {
			continue
		}
		spent += r.Amount.Cents
	}

	result := core.AlertResult{
		Category: cat,
		Spent:    core.Money{Cents: spent},
		Level:    core.LevelNone,
	}

	limit, ok := registry.Limit(cat)
	if !ok || limit.Cents == 0 {
		// Budgets are optional per category; nothing to grade against.
		return result, nil
	}
	if limit.Cents < 0 {
		return core.AlertResult{}, fmt.Errorf("category %s: %w", cat, core.ErrNegativeLimit)
	}

	result.Limit = limit
	result.Percent = 100 * float64(spent) / float64(limit.Cents)
	result.Level = e.level(result.Percent)
	return result, nil
}

func (e *BudgetEvaluator) level(pct float64) core.AlertLevel {
	switch {
	case pct >= 100:
		return core.LevelExceeded
	case pct >= e.thresholds.CriticalPct:
		return core.LevelCritical
	case pct >= e.thresholds.WarningPct:
		return core.LevelWarning
	default:
		return core.LevelNone
	}
}
