// Package store defines the persistence ports the analysis service talks
// to. Backends append records, list history and hold budget limits; the
// analysis engine itself never touches storage.
package store

import (
	"context"

	"budgetwatch/internal/core"
)

type (
	// RecordWriter appends one immutable expense record and returns its
	// assigned ID. Records are never updated or deleted through this port.
	RecordWriter interface {
		AppendRecord(ctx context.Context, r core.ExpenseRecord) (int64, error)
	}

	// RecordReader lists expense history in append order.
	RecordReader interface {
		// ListRecords returns the full history.
		ListRecords(ctx context.Context) ([]core.ExpenseRecord, error)
		// ListMonthRecords returns records dated in the given month.
		ListMonthRecords(ctx context.Context, year, month int) ([]core.ExpenseRecord, error)
	}

	// BudgetStore persists per-category monthly limits.
	BudgetStore interface {
		SetBudget(ctx context.Context, l core.BudgetLimit) error
		ListBudgets(ctx context.Context) ([]core.BudgetLimit, error)
	}

	// Store is the full persistence surface the service needs.
	Store interface {
		RecordWriter
		RecordReader
		BudgetStore
	}
)
