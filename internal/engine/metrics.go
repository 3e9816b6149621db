package engine

import (
	"fmt"
	"sort"

	"advisor/internal/core"
)

// DefaultTrailingPeriods is the trailing window used for averages when
// the caller does not configure one.
const DefaultTrailingPeriods = 3

// Ratio is a derived rate that may be undefined. An undefined metric
// is a value, not an error: dividing by zero income or a zero burn
// rate yields Defined == false, never a panic, zero or infinity.
type Ratio struct {
	Value   float64
	Defined bool
}

// DefinedRatio wraps a computed value.
func DefinedRatio(v float64) Ratio { return Ratio{Value: v, Defined: true} }

// Undefined is the explicit not-computable ratio.
func Undefined() Ratio { return Ratio{} }

// String renders the ratio for justification chains.
func (r Ratio) String() string {
	if !r.Defined {
		return "undefined"
	}
	return fmt.Sprintf("%.4f", r.Value)
}

// CategoryDrift is the relative deviation of a category's
// current-period spend from its trailing average.
type CategoryDrift struct {
	Category string
	Drift    Ratio
}

// MetricsConfig tunes metric derivation.
type MetricsConfig struct {
	TrailingPeriods int
}

func (c MetricsConfig) trailing() int {
	if c.TrailingPeriods <= 0 {
		return DefaultTrailingPeriods
	}
	return c.TrailingPeriods
}

// Metrics are the derived rates and aggregates for one state snapshot.
type Metrics struct {
	AsOf           core.Date
	Income         core.Money // current period
	Expense        core.Money // current period, positive cents
	CategoryTotals []core.CategoryAmount
	TrailingAvg    []core.CategoryAmount // per-category trailing average
	SavingsRate    Ratio
	// MonthlySurplus is the average net of income minus expense over
	// the trailing window; BurnRate is its negation (net outflow).
	MonthlySurplus core.Money
	BurnRate       core.Money
	RunwayMonths   Ratio
	Drift          []CategoryDrift
	LiquidBalance  core.Money
}

// ComputeMetrics derives metrics from a financial state.
//
// Savings rate is (income - expense) / income for the current period
// and undefined when income is zero. Burn rate is the average monthly
// net outflow over the trailing window; runway is liquid balance over
// burn rate and undefined unless burn rate is positive.
func ComputeMetrics(state FinancialState, cfg MetricsConfig) Metrics {
	n := cfg.trailing()
	current := state.CurrentMonth()
	trailing := state.TrailingMonths(n)

	m := Metrics{
		AsOf:           state.AsOf,
		Income:         current.Income,
		Expense:        current.Expense,
		CategoryTotals: append([]core.CategoryAmount(nil), current.ByCategory...),
		LiquidBalance:  state.LiquidBalance,
	}

	if current.Income.Cents > 0 {
		saved := current.Income.Sub(current.Expense)
		m.SavingsRate = DefinedRatio(float64(saved.Cents) / float64(current.Income.Cents))
	}

	// Trailing per-category averages. Months without spend in a
	// category still count toward the divisor.
	sums := make(map[string]int64)
	counts := make(map[string]int)
	var netSum int64
	for _, month := range trailing {
		netSum += month.Income.Cents - month.Expense.Cents
		for _, ca := range month.ByCategory {
			sums[ca.Category] += ca.Amount.Cents
			counts[ca.Category] += ca.Count
		}
	}
	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m.TrailingAvg = append(m.TrailingAvg, core.CategoryAmount{
			Category: name,
			Amount:   core.Money{Cents: sums[name] / int64(n)},
			Count:    counts[name],
		})
	}

	m.MonthlySurplus = core.Money{Cents: netSum / int64(n)}
	m.BurnRate = m.MonthlySurplus.Neg()
	if m.BurnRate.Cents > 0 {
		m.RunwayMonths = DefinedRatio(float64(m.LiquidBalance.Cents) / float64(m.BurnRate.Cents))
	}

	m.Drift = computeDrift(current.ByCategory, sums, n)
	return m
}

// CategorySpend returns the current-period spend for a category.
func (m Metrics) CategorySpend(category string) core.Money {
	for _, ca := range m.CategoryTotals {
		if ca.Category == category {
			return ca.Amount
		}
	}
	return core.Money{}
}

func computeDrift(current []core.CategoryAmount, trailingSums map[string]int64, n int) []CategoryDrift {
	names := make(map[string]bool, len(current)+len(trailingSums))
	for _, ca := range current {
		names[ca.Category] = true
	}
	for name := range trailingSums {
		names[name] = true
	}
	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	currentByName := make(map[string]int64, len(current))
	for _, ca := range current {
		currentByName[ca.Category] = ca.Amount.Cents
	}

	out := make([]CategoryDrift, 0, len(ordered))
	for _, name := range ordered {
		avg := float64(trailingSums[name]) / float64(n)
		d := CategoryDrift{Category: name}
		if avg > 0 {
			d.Drift = DefinedRatio((float64(currentByName[name]) - avg) / avg)
		}
		out = append(out, d)
	}
	return out
}
