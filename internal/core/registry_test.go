package core

import (
	"errors"
	"testing"
)

func TestBudgetRegistry_SetAndLimit(t *testing.T) {
	r := NewBudgetRegistry()

	if err := r.SetLimit("Food", Money{Cents: 100000}); err != nil {
		t.Fatalf("SetLimit() = %v", err)
	}

	// Lookup is case-insensitive
	limit, ok := r.Limit("  FOOD ")
	if !ok || limit.Cents != 100000 {
		t.Fatalf("Limit(FOOD) = %v, %v; want 100000, true", limit.Cents, ok)
	}

	// Replacing an existing limit keeps a single entry per category
	if err := r.SetLimit("food", Money{Cents: 50000}); err != nil {
		t.Fatalf("SetLimit() replace = %v", err)
	}
	limit, _ = r.Limit("food")
	if limit.Cents != 50000 {
		t.Errorf("replaced limit = %d, want 50000", limit.Cents)
	}
	if got := len(r.Limits()); got != 1 {
		t.Errorf("Limits() count = %d, want 1", got)
	}
}

func TestBudgetRegistry_AbsentCategory(t *testing.T) {
	r := NewBudgetRegistry()
	if _, ok := r.Limit("travel"); ok {
		t.Error("unconfigured category must report no limit")
	}
}

func TestBudgetRegistry_Errors(t *testing.T) {
	r := NewBudgetRegistry()
	if err := r.SetLimit("", Money{Cents: 100}); !errors.Is(err, ErrEmptyCategory) {
		t.Errorf("SetLimit(empty) = %v, want ErrEmptyCategory", err)
	}
	if err := r.SetLimit("food", Money{Cents: -1}); !errors.Is(err, ErrNegativeLimit) {
		t.Errorf("SetLimit(negative) = %v, want ErrNegativeLimit", err)
	}
}

func TestBudgetRegistry_Categories(t *testing.T) {
	r := NewBudgetRegistry()
	for _, c := range DefaultCategories {
		if !r.Known(c) {
			t.Errorf("default category %q not known", c)
		}
	}

	got, err := r.RegisterCategory(" Travel ")
	if err != nil {
		t.Fatalf("RegisterCategory() = %v", err)
	}
	if got != "travel" {
		t.Errorf("RegisterCategory normalized to %q, want travel", got)
	}
	if !r.Known("TRAVEL") {
		t.Error("registered category not found via case-insensitive lookup")
	}

	cats := r.Categories()
	if len(cats) != len(DefaultCategories)+1 {
		t.Errorf("Categories() len = %d, want %d", len(cats), len(DefaultCategories)+1)
	}
	for i := 1; i < len(cats); i++ {
		if cats[i-1] > cats[i] {
			t.Fatalf("Categories() not sorted: %v", cats)
		}
	}
}
