// Package engine implements the pure decision computations: state
// derivation, metrics, constraint evaluation, goal projection,
// scenario comparison, alert scanning and decision composition.
//
// Every function in this package is free of I/O and shared mutable
// state. Identical inputs always produce identical outputs; all
// currency arithmetic is integer cents.
package engine

import (
	"sort"

	"advisor/internal/core"
)

// MonthTotals aggregates one calendar month of a user's ledger.
// Expense is carried as positive cents; ByCategory covers spending
// only, sorted by category name.
type MonthTotals struct {
	Year       int
	Month      int // 1-12
	Income     core.Money
	Expense    core.Money
	ByCategory []core.CategoryAmount
}

// FinancialState is a point-in-time derivation of a user's finances.
// It is never stored as mutable truth; Build recomputes it from the
// transaction log and active configuration on every evaluation.
type FinancialState struct {
	AsOf          core.Date
	Transactions  []core.Transaction // deduped by id, sorted by date then id
	Budgets       []core.Budget
	Goals         []core.Goal // sorted by priority, highest first
	Months        []MonthTotals
	LiquidBalance core.Money
}

// Build derives a FinancialState from a transaction log plus budget
// and goal configuration, as of a date. It is a pure function: inputs
// are not mutated, an empty transaction set yields a zeroed state,
// and a transaction id seen twice is counted once (re-submitting an
// already-recorded transaction is a no-op).
func Build(transactions []core.Transaction, budgets []core.Budget, goals []core.Goal, asOf core.Date) FinancialState {
	state := FinancialState{AsOf: asOf}

	seen := make(map[string]bool, len(transactions))
	for _, t := range transactions {
		if t.ID == "" || seen[t.ID] {
			continue
		}
		if t.Date.After(asOf.Time) {
			continue
		}
		seen[t.ID] = true
		state.Transactions = append(state.Transactions, t)
	}
	sort.SliceStable(state.Transactions, func(i, j int) bool {
		a, b := state.Transactions[i], state.Transactions[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.Before(b.Date.Time)
		}
		return a.ID < b.ID
	})

	state.Budgets = append(state.Budgets, budgets...)
	sort.SliceStable(state.Budgets, func(i, j int) bool {
		a, b := state.Budgets[i], state.Budgets[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.EffectiveFrom.Before(b.EffectiveFrom.Time)
	})

	state.Goals = append(state.Goals, goals...)
	sort.SliceStable(state.Goals, func(i, j int) bool {
		return state.Goals[i].Priority < state.Goals[j].Priority
	})

	state.Months = monthTotals(state.Transactions)
	for _, t := range state.Transactions {
		state.LiquidBalance = state.LiquidBalance.Add(t.Amount)
	}

	return state
}

// CurrentMonth returns the totals for the as-of month, zeroed when no
// transaction falls in it.
func (s FinancialState) CurrentMonth() MonthTotals {
	for _, m := range s.Months {
		if m.Year == s.AsOf.Year() && m.Month == s.AsOf.Month() {
			return m
		}
	}
	return MonthTotals{Year: s.AsOf.Year(), Month: s.AsOf.Month()}
}

// TrailingMonths returns up to n complete months preceding the as-of
// month, oldest first. Months with no transactions are returned as
// zeroed totals so averages divide by the full window.
func (s FinancialState) TrailingMonths(n int) []MonthTotals {
	if n <= 0 {
		return nil
	}
	byKey := make(map[[2]int]MonthTotals, len(s.Months))
	for _, m := range s.Months {
		byKey[[2]int{m.Year, m.Month}] = m
	}

	out := make([]MonthTotals, 0, n)
	cursor := s.AsOf.AddMonths(-n)
	for i := 0; i < n; i++ {
		key := [2]int{cursor.Year(), cursor.Month()}
		if m, ok := byKey[key]; ok {
			out = append(out, m)
		} else {
			out = append(out, MonthTotals{Year: key[0], Month: key[1]})
		}
		cursor = cursor.AddMonths(1)
	}
	return out
}

func monthTotals(transactions []core.Transaction) []MonthTotals {
	type key struct{ year, month int }
	byMonth := make(map[key]*MonthTotals)
	categories := make(map[key]map[string]*core.CategoryAmount)

	for _, t := range transactions {
		k := key{t.Date.Year(), t.Date.Month()}
		m, ok := byMonth[k]
		if !ok {
			m = &MonthTotals{Year: k.year, Month: k.month}
			byMonth[k] = m
			categories[k] = make(map[string]*core.CategoryAmount)
		}
		if t.Amount.Cents > 0 {
			m.Income = m.Income.Add(t.Amount)
			continue
		}
		spend := t.Amount.Neg()
		m.Expense = m.Expense.Add(spend)
		ca, ok := categories[k][t.Category]
		if !ok {
			ca = &core.CategoryAmount{Category: t.Category}
			categories[k][t.Category] = ca
		}
		ca.Amount = ca.Amount.Add(spend)
		ca.Count++
	}

	out := make([]MonthTotals, 0, len(byMonth))
	for k, m := range byMonth {
		for _, ca := range categories[k] {
			m.ByCategory = append(m.ByCategory, *ca)
		}
		sort.Slice(m.ByCategory, func(i, j int) bool {
			return m.ByCategory[i].Category < m.ByCategory[j].Category
		})
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}
