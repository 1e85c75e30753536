package core

import "sort"

// BudgetRegistry maps normalized category names to monthly limits and keeps
// the whitelist of known categories. Categories start from DefaultCategories
// and grow as users register new ones or record expenses against them.
//
// The registry is not safe for concurrent use on its own; callers serialize
// access (the analysis service holds one writer lock around append+evaluate).
type BudgetRegistry struct {
	limits map[string]Money
	known  map[string]struct{}
}

func NewBudgetRegistry() *BudgetRegistry {
	r := &BudgetRegistry{
		limits: make(map[string]Money),
		known:  make(map[string]struct{}),
	}
	for _, c := range DefaultCategories {
		r.known[c] = struct{}{}
	}
	return r
}

// RegisterCategory adds a category to the whitelist and returns its
// normalized form. Registering an already-known category is a no-op.
func (r *BudgetRegistry) RegisterCategory(name string) (string, error) {
	c := NormalizeCategory(name)
	if c == "" {
		return "", ErrEmptyCategory
	}
	r.known[c] = struct{}{}
	return c, nil
}

// Known reports whether a category has been registered.
func (r *BudgetRegistry) Known(category string) bool {
	_, ok := r.known[NormalizeCategory(category)]
	return ok
}

// Categories returns the whitelist in sorted order.
func (r *BudgetRegistry) Categories() []string {
	out := make([]string, 0, len(r.known))
	for c := range r.known {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// SetLimit configures (or replaces) the monthly limit for a category. The
// category is registered as a side effect so budgets and records share one
// whitelist.
func (r *BudgetRegistry) SetLimit(category string, limit Money) error {
	c, err := r.RegisterCategory(category)
	if err != nil {
		return err
	}
	if limit.Cents < 0 {
		return ErrNegativeLimit
	}
	r.limits[c] = limit
	return nil
}

// Limit returns the configured limit for a category. The second return is
// false when no budget is configured, which callers treat as "no alerting".
func (r *BudgetRegistry) Limit(category string) (Money, bool) {
	m, ok := r.limits[NormalizeCategory(category)]
	return m, ok
}

// Limits returns all configured budgets sorted by category.
func (r *BudgetRegistry) Limits() []BudgetLimit {
	out := make([]BudgetLimit, 0, len(r.limits))
	for c, m := range r.limits {
		out = append(out, BudgetLimit{Category: c, Limit: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
