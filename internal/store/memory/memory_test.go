package memory

import (
	"context"
	"testing"

	"budgetwatch/internal/core"
)

func TestStore_AppendAndList(t *testing.T) {
	s := New()
	ctx := context.Background()

	id1, err := s.AppendRecord(ctx, core.ExpenseRecord{
		Date:     core.NewDate(2025, 6, 1),
		Category: "Food",
		Amount:   core.Money{Cents: 1000},
	})
	if err != nil {
		t.Fatalf("AppendRecord() = %v", err)
	}
	id2, err := s.AppendRecord(ctx, core.ExpenseRecord{
		Date:     core.NewDate(2025, 7, 2),
		Category: "rent",
		Amount:   core.Money{Cents: 2000},
	})
	if err != nil {
		t.Fatalf("AppendRecord() = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("IDs must be distinct, both %d", id1)
	}

	all, err := s.ListRecords(ctx)
	if err != nil {
		t.Fatalf("ListRecords() = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("records = %d, want 2", len(all))
	}
	if all[0].ID != id1 || all[1].ID != id2 {
		t.Error("records not in append order")
	}
	if all[0].Category != "food" {
		t.Errorf("category stored as %q, want normalized form", all[0].Category)
	}

	june, err := s.ListMonthRecords(ctx, 2025, 6)
	if err != nil {
		t.Fatalf("ListMonthRecords() = %v", err)
	}
	if len(june) != 1 || june[0].ID != id1 {
		t.Errorf("ListMonthRecords(2025, 6) = %v", june)
	}
}

func TestStore_AppendRejectsInvalid(t *testing.T) {
	s := New()
	if _, err := s.AppendRecord(context.Background(), core.ExpenseRecord{
		Date:     core.NewDate(2025, 6, 1),
		Category: "food",
		Amount:   core.Money{Cents: -100},
	}); err == nil {
		t.Error("negative amount must be rejected")
	}
}

func TestStore_Budgets(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.SetBudget(ctx, core.BudgetLimit{Category: "Rent", Limit: core.Money{Cents: 80000}}); err != nil {
		t.Fatalf("SetBudget() = %v", err)
	}
	if err := s.SetBudget(ctx, core.BudgetLimit{Category: "food", Limit: core.Money{Cents: 50000}}); err != nil {
		t.Fatalf("SetBudget() = %v", err)
	}
	// Replace keeps one entry per category.
	if err := s.SetBudget(ctx, core.BudgetLimit{Category: "RENT", Limit: core.Money{Cents: 90000}}); err != nil {
		t.Fatalf("SetBudget() replace = %v", err)
	}

	budgets, err := s.ListBudgets(ctx)
	if err != nil {
		t.Fatalf("ListBudgets() = %v", err)
	}
	if len(budgets) != 2 {
		t.Fatalf("budgets = %d, want 2", len(budgets))
	}
	if budgets[0].Category != "food" || budgets[1].Category != "rent" {
		t.Errorf("budgets not sorted by category: %v", budgets)
	}
	if budgets[1].Limit.Cents != 90000 {
		t.Errorf("rent limit = %d, want 90000", budgets[1].Limit.Cents)
	}

	if err := s.SetBudget(ctx, core.BudgetLimit{Category: "fee", Limit: core.Money{Cents: -1}}); err == nil {
		t.Error("negative limit must be rejected")
	}
}
