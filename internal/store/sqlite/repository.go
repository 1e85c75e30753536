// Package sqlite persists expense records and budget limits in a local
// SQLite database, the production backend for the analysis service.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"budgetwatch/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AppendRecord implements store.RecordWriter. The category is stored in
// normalized form so queries never need case folding.
func (r *Repository) AppendRecord(ctx context.Context, rec core.ExpenseRecord) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, fmt.Errorf("validate record: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO records (spent_on, category, amount_cents, description) VALUES (?, ?, ?, ?)`,
		rec.Date.Format(dateLayout),
		core.NormalizeCategory(rec.Category),
		rec.Amount.Cents,
		rec.Description,
	)
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Record saved",
		"id", id,
		"category", core.NormalizeCategory(rec.Category),
		"amount_cents", rec.Amount.Cents,
		"spent_on", rec.Date.Format(dateLayout))

	return id, nil
}

// ListRecords implements store.RecordReader.
func (r *Repository) ListRecords(ctx context.Context) ([]core.ExpenseRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, spent_on, category, amount_cents, description FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListMonthRecords implements store.RecordReader. Month filtering happens
// on the lexicographic "YYYY-MM" prefix of spent_on.
func (r *Repository) ListMonthRecords(ctx context.Context, year, month int) ([]core.ExpenseRecord, error) {
	prefix := fmt.Sprintf("%04d-%02d", year, month)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, spent_on, category, amount_cents, description FROM records
		 WHERE spent_on LIKE ? || '%' ORDER BY id`, prefix)
	if err != nil {
		return nil, fmt.Errorf("query month records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// SetBudget implements store.BudgetStore; upserts the category's limit.
func (r *Repository) SetBudget(ctx context.Context, l core.BudgetLimit) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("validate budget: %w", err)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (category, limit_cents, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (category) DO UPDATE SET limit_cents = excluded.limit_cents, updated_at = CURRENT_TIMESTAMP`,
		core.NormalizeCategory(l.Category), l.Limit.Cents)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget saved",
		"category", core.NormalizeCategory(l.Category),
		"limit_cents", l.Limit.Cents)

	return nil
}

// ListBudgets implements store.BudgetStore.
func (r *Repository) ListBudgets(ctx context.Context) ([]core.BudgetLimit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, limit_cents FROM budgets ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetLimit
	for rows.Next() {
		var l core.BudgetLimit
		if err := rows.Scan(&l.Category, &l.Limit.Cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

func scanRecords(rows *sql.Rows) ([]core.ExpenseRecord, error) {
	var out []core.ExpenseRecord
	for rows.Next() {
		var (
			rec     core.ExpenseRecord
			spentOn string
		)
		if err := rows.Scan(&rec.ID, &spentOn, &rec.Category, &rec.Amount.Cents, &rec.Description); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		d, err := time.Parse(dateLayout, spentOn)
		if err != nil {
			return nil, fmt.Errorf("parse record %d date %q: %w", rec.ID, spentOn, err)
		}
		rec.Date = core.Date{Time: d}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}
