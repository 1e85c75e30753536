package core

import (
	"errors"
	"strings"
	"time"
)

const (
	LevelNone     AlertLevel = "none"
	LevelWarning  AlertLevel = "warning"
	LevelCritical AlertLevel = "critical"
	LevelExceeded AlertLevel = "exceeded"
)

type (
	// AlertLevel classifies how far a category's monthly spend has progressed
	// against its configured limit.
	AlertLevel string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// ExpenseRecord is a single dated, categorized expense. Records are
	// immutable once appended to a store.
	ExpenseRecord struct {
		ID          int64
		Date        Date
		Category    string
		Amount      Money
		Description string
	}

	// BudgetLimit pairs a category with its monthly spending limit.
	BudgetLimit struct {
		Category string
		Limit    Money
	}

	// AlertResult reports spend-to-limit usage for one category in one month.
	// Percent is zero when Level is none because no limit applies.
	AlertResult struct {
		Category string
		Spent    Money
		Limit    Money
		Percent  float64
		Level    AlertLevel
	}

	// AnomalyFlag is the advisory outcome of checking one record against its
	// category's historical baseline. It never blocks recording the expense.
	AnomalyFlag struct {
		RecordID  int64
		Category  string
		Anomalous bool
		Score     float64
		Reason    string
	}
)

var (
	ErrInvalidDate    = errors.New("invalid date")
	ErrNegativeAmount = errors.New("negative amount")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrEmptyCategory  = errors.New("empty category")
	ErrNegativeLimit  = errors.New("negative budget limit")
)

// DefaultCategories is the starter category set. The registry accepts
// user-registered additions on top of it.
var DefaultCategories = []string{"food", "cloth", "rent", "bill", "medical", "fee", "other"}

// NormalizeCategory canonicalizes free-typed category input for lookups.
func NormalizeCategory(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NewDate creates a Date at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// SameMonth reports whether the date falls in the same calendar month and
// year as t. Monthly budgets reset on this boundary.
func (d Date) SameMonth(t time.Time) bool {
	return d.Year() == t.Year() && d.Month() == t.Month()
}

// MonthKey returns the "YYYY-MM" grouping key for the date.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// DayKey returns the "YYYY-MM-DD" grouping key for the date.
func (d Date) DayKey() string {
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func (r ExpenseRecord) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if NormalizeCategory(r.Category) == "" {
		return ErrEmptyCategory
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if len(r.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (l BudgetLimit) Validate() error {
	if NormalizeCategory(l.Category) == "" {
		return ErrEmptyCategory
	}
	if l.Limit.Cents < 0 {
		return ErrNegativeLimit
	}
	return nil
}
