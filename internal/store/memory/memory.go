// Package memory provides an in-memory store backend, used as the default
// for local runs and as the fixture backend in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"budgetwatch/internal/core"
)

type Store struct {
	mu      sync.Mutex
	nextID  int64
	records []core.ExpenseRecord
	budgets map[string]core.Money
}

func New() *Store {
	return &Store{nextID: 1, budgets: make(map[string]core.Money)}
}

// AppendRecord stores the record and returns its assigned ID.
func (s *Store) AppendRecord(_ context.Context, r core.ExpenseRecord) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextID
	r.Category = core.NormalizeCategory(r.Category)
	s.nextID++
	s.records = append(s.records, r)
	return r.ID, nil
}

// ListRecords returns the full history in append order.
func (s *Store) ListRecords(_ context.Context) ([]core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ExpenseRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// ListMonthRecords returns records dated in the given month, append order.
func (s *Store) ListMonthRecords(_ context.Context, year, month int) ([]core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ExpenseRecord
	for _, r := range s.records {
		if r.Date.Year() == year && int(r.Date.Month()) == month {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) SetBudget(_ context.Context, l core.BudgetLimit) error {
	if err := l.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[core.NormalizeCategory(l.Category)] = l.Limit
	return nil
}

func (s *Store) ListBudgets(_ context.Context) ([]core.BudgetLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.BudgetLimit, 0, len(s.budgets))
	for c, m := range s.budgets {
		out = append(out, core.BudgetLimit{Category: c, Limit: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}
